package healthcheck

import (
	"context"
	"log"
	"sync"
	"time"
)

// PingFunc probes one service dependency (redis, postgres).
type PingFunc func(ctx context.Context) error

// Periodically probes the service's dependencies in the background, so
// /health and the admin status endpoint read a cached snapshot instead
// of pinging on every request
type Checker struct {
	mu           sync.RWMutex
	dependencies map[string]PingFunc
	healthStatus map[string]*Status
	interval     time.Duration
	timeout      time.Duration
	maxFailures  int
	stopChan     chan struct{}
	running      bool
}

// Holds health checker configuration
type Config struct {
	Interval    time.Duration // How often to check (default: 10s)
	Timeout     time.Duration // Probe timeout (default: 5s)
	MaxFailures int           // Failures before marking unhealthy (default: 3)
}

func NewChecker(cfg Config) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}

	return &Checker{
		dependencies: make(map[string]PingFunc),
		healthStatus: make(map[string]*Status),
		interval:     cfg.Interval,
		timeout:      cfg.Timeout,
		maxFailures:  cfg.MaxFailures,
		stopChan:     make(chan struct{}),
	}
}

// Registers a dependency to probe. Call before Start.
func (c *Checker) AddDependency(name string, ping PingFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dependencies[name] = ping
	c.healthStatus[name] = &Status{
		Dependency: name,
		IsHealthy:  true, // Assume healthy initially
		LastCheck:  time.Now(),
	}
}

// Begins periodic health checks
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	count := len(c.dependencies)
	c.mu.Unlock()

	log.Printf("Starting health checks for %d dependencies (interval: %v)", count, c.interval)

	// Run initial check immediately
	c.checkAll()

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.checkAll()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stops the health checker
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		close(c.stopChan)
		c.running = false
		log.Printf("Health checker stopped")
	}
}

func (c *Checker) checkAll() {
	c.mu.RLock()
	names := make([]string, 0, len(c.dependencies))
	for name := range c.dependencies {
		names = append(names, name)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			c.checkDependency(n)
		}(name)
	}

	wg.Wait()
}

func (c *Checker) checkDependency(name string) {
	c.mu.RLock()
	ping := c.dependencies[name]
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := ping(ctx); err != nil {
		c.recordFailure(name)
		return
	}

	c.recordSuccess(name)
}

func (c *Checker) recordSuccess(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[name]
	status.LastCheck = time.Now()
	status.LastSuccess = time.Now()
	status.FailureCount = 0

	if !status.IsHealthy {
		log.Printf("Dependency %s is now healthy", name)
		status.IsHealthy = true
	}
}

func (c *Checker) recordFailure(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.healthStatus[name]
	status.LastCheck = time.Now()
	status.LastFailure = time.Now()
	status.FailureCount++

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		log.Printf("Dependency %s is now unhealthy (failures: %d)", name, status.FailureCount)
		status.IsHealthy = false
	}
}

// Returns the health status of a specific dependency
func (c *Checker) GetStatus(name string) *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if status, exists := c.healthStatus[name]; exists {
		// Return copy
		statusCopy := *status
		return &statusCopy
	}

	return nil
}

// Returns health status of all dependencies
func (c *Checker) GetAllStatus() map[string]*Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statusMap := make(map[string]*Status)
	for name, status := range c.healthStatus {
		statusCopy := *status
		statusMap[name] = &statusCopy
	}

	return statusMap
}

// Returns the overall health status
func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.healthStatus)
	healthy := 0
	for _, status := range c.healthStatus {
		if status.IsHealthy {
			healthy++
		}
	}

	if total == 0 || healthy == total {
		return Healthy
	}
	if healthy == 0 {
		return Unhealthy
	}

	return Degraded
}
