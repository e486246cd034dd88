package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/duchuyngn/muaban-backend/api/responses"
	"github.com/duchuyngn/muaban-backend/pkg/config"
	pkgerrors "github.com/duchuyngn/muaban-backend/pkg/errors"
	"github.com/duchuyngn/muaban-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Muaban-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the database and Redis both answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Muaban-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		checks["db"] = "ok"
		if dbP == nil {
			checks["db"] = "not configured"
			healthy = false
		} else if err := dbP.Ping(ctx); err != nil {
			checks["db"] = err.Error()
			healthy = false
		}

		checks["redis"] = "ok"
		if redisP == nil {
			checks["redis"] = "not configured"
			healthy = false
		} else if err := redisP.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
