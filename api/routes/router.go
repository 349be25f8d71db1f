package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docuflat/docuflat-backend/api/controllers"
	"github.com/docuflat/docuflat-backend/api/middleware"
	"github.com/docuflat/docuflat-backend/internal/scans"
	"github.com/docuflat/docuflat-backend/pkg/config"
	"github.com/docuflat/docuflat-backend/pkg/logger"
	"github.com/docuflat/docuflat-backend/pkg/redis"
)

type Pinger interface {
	Ping(context.Context) error
}

// Deps carries everything the router wires together. Redis, Registry, and
// LocalUploadsDir are optional.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DBPinger        Pinger
	RedisClient     *redis.Client
	StoragePinger   Pinger
	ScanService     scans.Service
	Registry        *prometheus.Registry
	LocalUploadsDir string
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, redisPinger(deps.RedisClient), deps.StoragePinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	uploadPolicy := middleware.NewUploadRateLimitPolicy(
		cfg.UploadRateLimit.Window,
		cfg.UploadRateLimit.UserLimit,
	)

	r.Route("/api/v1/scans", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.UploadRateLimit(uploadPolicy, rateLimiterStore(deps.RedisClient), logg)).
			Post("/", controllers.ScanUpload(deps.ScanService, cfg.Uploads.MaxUploadBytes, logg))
		r.Get("/", controllers.ScanList(deps.ScanService, logg))
		r.Get("/{docID}/download/{kind}", controllers.ScanDownload(deps.ScanService, logg))
		r.Delete("/{docID}", controllers.ScanDelete(deps.ScanService, logg))
	})

	// Local storage keeps artifact URLs on this host; serve them directly.
	if deps.LocalUploadsDir != "" {
		fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.LocalUploadsDir)))
		r.Get("/uploads/*", fileServer.ServeHTTP)
	}

	return r
}

// redisPinger avoids handing a typed-nil *redis.Client to the health check.
func redisPinger(client *redis.Client) Pinger {
	if client == nil {
		return nil
	}
	return client
}

func rateLimiterStore(client *redis.Client) middleware.RateLimiterStore {
	if client == nil {
		return nil
	}
	return client
}
