package gcs

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestTokenSourceCachesUntilNearExpiry(t *testing.T) {
	calls := 0
	ts := &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			calls++
			return fmt.Sprintf("token-%d", calls), time.Now().Add(time.Hour), nil
		},
	}

	first, err := ts.Token(t.Context())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	second, err := ts.Token(t.Context())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached token, got %q then %q", first, second)
	}
	if calls != 1 {
		t.Fatalf("expected single fetch, got %d", calls)
	}
}

func TestTokenSourceRefreshesExpiredToken(t *testing.T) {
	calls := 0
	ts := &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			calls++
			return fmt.Sprintf("token-%d", calls), time.Now().Add(30 * time.Second), nil
		},
	}

	if _, err := ts.Token(t.Context()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	// Expiry is within the one minute refresh margin, so the next call fetches.
	if _, err := ts.Token(t.Context()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected refresh, got %d fetches", calls)
	}
}

func TestURLPrefersPublicBase(t *testing.T) {
	s := &Store{bucket: "bucket", publicBase: "https://cdn.example.com"}
	if got := s.URL("a-original.png"); got != "https://cdn.example.com/a-original.png" {
		t.Fatalf("unexpected url %q", got)
	}

	s = &Store{bucket: "bucket"}
	if got := s.URL("a-original.png"); got != "https://storage.googleapis.com/bucket/a-original.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestServiceAccountTokenSourceRejectsBadCreds(t *testing.T) {
	if _, err := newServiceAccountTokenSource(nil, `{"client_email":""}`); err == nil {
		t.Fatal("expected invalid credentials error")
	}
	if _, err := newServiceAccountTokenSource(nil, `not-json`); err == nil {
		t.Fatal("expected parse error")
	}
}
