package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	Total       int32 `json:"total"`
	Idle        int32 `json:"idle"`
	Acquired    int32 `json:"acquired"`
	Max         int32 `json:"max"`
	Acquires    int64 `json:"acquires"`
	AcquireWait int64 `json:"acquire_wait_ms"`
}

func statsOf(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Total:       s.TotalConns(),
		Idle:        s.IdleConns(),
		Acquired:    s.AcquiredConns(),
		Max:         s.MaxConns(),
		Acquires:    s.AcquireCount(),
		AcquireWait: s.AcquireDuration().Milliseconds(),
	}
}

// Dependency is a backend besides Postgres, such as the agenda cache.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// Report is the body of GET /health/db. Status is "healthy", "degraded" when
// only a dependency is down, or "unhealthy" when Postgres is unreachable.
type Report struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Pool         PoolStats         `json:"pool"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// CheckDependencies pings every dependency and returns name -> "ok" or the error text.
func CheckDependencies(ctx context.Context, deps []Dependency) (map[string]string, bool) {
	out := make(map[string]string, len(deps))
	healthy := true
	for _, d := range deps {
		if err := d.Ping(ctx); err != nil {
			out[d.Name] = err.Error()
			healthy = false
			continue
		}
		out[d.Name] = "ok"
	}
	return out, healthy
}

func newReport(dbErr error, pool PoolStats, checks map[string]string, depsHealthy bool) (int, Report) {
	r := Report{Status: "healthy", Database: "ok", Pool: pool, Dependencies: checks}
	switch {
	case dbErr != nil:
		r.Status, r.Database = "unhealthy", dbErr.Error()
		return http.StatusServiceUnavailable, r
	case !depsHealthy:
		// Reads fall back to Postgres while the cache is down.
		r.Status = "degraded"
	}
	return http.StatusOK, r
}

func HealthHandler(pool *pgxpool.Pool, deps ...Dependency) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		dbErr := pool.Ping(ctx)
		checks, ok := CheckDependencies(ctx, deps)
		code, report := newReport(dbErr, statsOf(pool), checks, ok)
		return c.JSON(code, report)
	}
}
