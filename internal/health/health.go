package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger is anything with a context-aware connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker is the subset of storage.Store the checker needs.
type StoreChecker interface {
	Health() error
}

// HealthChecker serves liveness and readiness probes.
type HealthChecker struct {
	health healthcheck.Handler
	store  StoreChecker
	redis  Pinger
	logger *zap.Logger
}

// NewHealthChecker creates the checker. redis may be nil when no shared
// attempt counter is configured.
func NewHealthChecker(store StoreChecker, redis Pinger, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		redis:  redis,
		logger: logger,
	}
	hc.addChecks()
	return hc
}

func (hc *HealthChecker) addChecks() {
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	hc.health.AddReadinessCheck("database", hc.logged("database", hc.store.Health))

	if hc.redis != nil {
		hc.health.AddReadinessCheck("redis", hc.logged("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return hc.redis.Ping(ctx)
		}))
	}
}

func (hc *HealthChecker) logged(name string, check healthcheck.Check) healthcheck.Check {
	return func() error {
		if err := check(); err != nil {
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}
}

// Handler serves /live and /ready.
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveHandler reports process liveness.
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler reports whether the backing stores are reachable.
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth runs every readiness check and returns a status per component.
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["database"] = "OK"
	}

	if hc.redis == nil {
		results["redis"] = "NOT_CONFIGURED"
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := hc.redis.Ping(ctx); err != nil {
			results["redis"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["redis"] = "OK"
		}
	}

	results["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return results
}
