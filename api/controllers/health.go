package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/docuflat/docuflat-backend/api/responses"
	"github.com/docuflat/docuflat-backend/pkg/config"
	pkgerrors "github.com/docuflat/docuflat-backend/pkg/errors"
	"github.com/docuflat/docuflat-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Docuflat-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks every wired dependency. Nil pingers are skipped so
// optional backends do not fail readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, storeP pinger) http.HandlerFunc {
	checks := map[string]pinger{
		"database": dbP,
		"redis":    redisP,
		"storage":  storeP,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Docuflat-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statuses := map[string]string{}
		healthy := true
		for name, p := range checks {
			if p == nil {
				statuses[name] = "skipped"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				statuses[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness check failed: "+name, err)
				}
				continue
			}
			statuses[name] = "up"
		}

		if !healthy {
			responses.WriteError(r.Context(), nil, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(statuses))
			return
		}
		responses.WriteSuccess(w, statuses)
	}
}
