package geometry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/docuflat/docuflat-backend/pkg/config"
	"github.com/docuflat/docuflat-backend/pkg/logger"
)

// ExecEngine invokes the OpenCV sidecar scripts as isolated, timeout-bounded
// processes. The scripts speak JSON on stdout; stderr has no structure, so
// warning/deprecation chatter is tolerated and anything else is treated as a
// hard failure. A structured result channel would remove this sniffing; the
// process contract does not offer one.
type ExecEngine struct {
	python      string
	detectPath  string
	rectifyPath string
	timeout     time.Duration
	logg        *logger.Logger
}

func NewExecEngine(cfg config.GeometryConfig, logg *logger.Logger) (*ExecEngine, error) {
	if strings.TrimSpace(cfg.Python) == "" {
		return nil, fmt.Errorf("geometry interpreter is required")
	}
	if strings.TrimSpace(cfg.DetectPath) == "" || strings.TrimSpace(cfg.RectifyPath) == "" {
		return nil, fmt.Errorf("geometry script paths are required")
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExecEngine{
		python:      cfg.Python,
		detectPath:  cfg.DetectPath,
		rectifyPath: cfg.RectifyPath,
		timeout:     timeout,
		logg:        logg,
	}, nil
}

// DetectBoundary runs the contour script. A JSON null on stdout means no
// confident boundary; a 4x2 array is the winning quadrilateral.
func (e *ExecEngine) DetectBoundary(ctx context.Context, rasterPath string) (*Polygon4, error) {
	stdout, err := e.run(ctx, e.detectPath, rasterPath)
	if err != nil {
		return nil, err
	}
	return parseDetectOutput(stdout)
}

// Rectify runs the warp script, writing the corrected raster to outputPath.
func (e *ExecEngine) Rectify(ctx context.Context, rasterPath string, polygon Polygon4, outputPath string) error {
	if err := polygon.Validate(); err != nil {
		return err
	}

	points := make([][2]float64, 0, 4)
	for _, p := range polygon {
		points = append(points, [2]float64{p.X, p.Y})
	}
	encoded, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encoding polygon: %w", err)
	}

	_, err = e.run(ctx, e.rectifyPath, rasterPath, string(encoded), outputPath)
	return err
}

func (e *ExecEngine) run(ctx context.Context, script string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.python, append([]string{script}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("geometry engine timed out after %s", e.timeout)
		}
		return nil, fmt.Errorf("geometry engine failed: %w: %s", err, firstLine(stderr.String()))
	}

	if chatter := strings.TrimSpace(stderr.String()); chatter != "" {
		if !isNoise(chatter) {
			return nil, fmt.Errorf("geometry engine stderr: %s", firstLine(chatter))
		}
		if e.logg != nil {
			e.logg.Warn(ctx, "geometry engine warning: "+firstLine(chatter))
		}
	}

	return stdout.Bytes(), nil
}

// isNoise reports whether stderr output is warning/deprecation chatter rather
// than a failure signal.
func isNoise(stderr string) bool {
	lowered := strings.ToLower(stderr)
	return strings.Contains(lowered, "warning") ||
		strings.Contains(lowered, "deprecat") ||
		strings.Contains(lowered, "futurewarning")
}

func parseDetectOutput(stdout []byte) (*Polygon4, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("geometry engine produced no output")
	}

	var raw [][2]float64
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("decoding boundary output: %w", err)
	}
	// A JSON null unmarshals to a nil slice: no confident boundary.
	if raw == nil {
		return nil, nil
	}
	if len(raw) != 4 {
		return nil, fmt.Errorf("boundary output has %d points, expected 4", len(raw))
	}

	var polygon Polygon4
	for i, pair := range raw {
		polygon[i] = Point{X: pair[0], Y: pair[1]}
	}
	return &polygon, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
