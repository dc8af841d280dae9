package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	ID            string
}

type Component string

const (
	ComponentRedis      Component = "redis"
	ComponentDB         Component = "db"
	ComponentLiteserver Component = "liteserver"
)

// Pinger returns nil when the component is reachable.
type Pinger func(ctx context.Context) error

func RedisPinger(client *redis.Client) Pinger {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Result    bool      `json:"result"`
}

type HealthChecks map[Component]CheckResult

type HealthStatus struct {
	Healthy bool         `json:"healthy"`
	Checks  HealthChecks `json:"checks"`
}

type Checker struct {
	config  *Config
	pingers map[Component]Pinger
	checks  HealthChecks
	mu      sync.RWMutex
	log     *slog.Logger
}

func NewChecker(config *Config, pingers map[Component]Pinger) *Checker {
	checks := make(HealthChecks, len(pingers))
	for component := range pingers {
		// if this code gets executed, we assume that there was an initial
		// check
		checks[component] = CheckResult{Timestamp: time.Now(), Result: true}
	}

	return &Checker{
		config:  config,
		pingers: pingers,
		checks:  checks,
		log:     slog.With("pod", config.ID, "component", "health"),
	}
}

func (c *Checker) Run(ctx context.Context) {
	c.log.Debug("Starting the health checker...")

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping health checker ...")
			return
		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

func (c *Checker) CheckAll(ctx context.Context) {
	for component, ping := range c.pingers {
		checkCtx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
		err := ping(checkCtx)
		cancel()

		if err != nil {
			c.log.Error("Component health check failed",
				"component", component, "error", err)
		}

		c.mu.Lock()
		c.checks[component] = CheckResult{
			Timestamp: time.Now(),
			Result:    err == nil,
		}
		c.mu.Unlock()
	}
}

func (c *Checker) GetHealthStatus() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	checks := make(HealthChecks, len(c.checks))

	for component, check := range c.checks {
		checks[component] = check
		if !check.Result {
			healthy = false
		}
	}

	return HealthStatus{
		Healthy: healthy,
		Checks:  checks,
	}
}

// Failed returns the components whose last check failed, sorted by name.
func (s HealthStatus) Failed() []Component {
	var failed []Component
	for component, check := range s.Checks {
		if !check.Result {
			failed = append(failed, component)
		}
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })

	return failed
}
