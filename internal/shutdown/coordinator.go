// Package shutdown provides graceful shutdown coordination for services.
package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Service represents a service that can be shutdown gracefully.
type Service interface {
	// Name returns the service name for logging.
	Name() string
	// Shutdown performs graceful shutdown. It should return when shutdown is complete.
	Shutdown(ctx context.Context) error
}

// ServiceFunc wraps a function to implement the Service interface.
type ServiceFunc struct {
	ServiceName string
	ShutdownFn  func(ctx context.Context) error
}

func (s ServiceFunc) Name() string                       { return s.ServiceName }
func (s ServiceFunc) Shutdown(ctx context.Context) error { return s.ShutdownFn(ctx) }

// Phase represents a shutdown phase. Services in the same phase are shutdown concurrently.
type Phase int

const (
	// PhaseDrain is for draining in-flight requests and deregistering
	// the webhook so Telegram stops pushing updates.
	PhaseDrain Phase = iota
	// PhaseShutdown is for stopping background workers such as the
	// follow-up scheduler.
	PhaseShutdown
	// PhaseCleanup is for final cleanup (close connections, flush buffers).
	PhaseCleanup
)

func (p Phase) String() string {
	switch p {
	case PhaseDrain:
		return "drain"
	case PhaseShutdown:
		return "shutdown"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Coordinator manages graceful shutdown of multiple services.
type Coordinator struct {
	mu       sync.Mutex
	services map[Phase][]Service
	timeout  time.Duration
	logger   *zap.Logger

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewCoordinator creates a new shutdown coordinator. A non-positive
// timeout falls back to 30 seconds.
func NewCoordinator(timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Coordinator{
		services:   make(map[Phase][]Service),
		timeout:    timeout,
		logger:     logger,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register adds a service to be shutdown in the specified phase.
func (c *Coordinator) Register(phase Phase, svc Service) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services[phase] = append(c.services[phase], svc)
	c.logger.Debug("registered service for shutdown",
		zap.String("service", svc.Name()),
		zap.String("phase", phase.String()),
	)
}

// RegisterFunc is a convenience method to register a shutdown function.
func (c *Coordinator) RegisterFunc(phase Phase, name string, fn func(ctx context.Context) error) {
	c.Register(phase, ServiceFunc{ServiceName: name, ShutdownFn: fn})
}

// Shutdown initiates graceful shutdown of all registered services.
// It runs phases sequentially, but services within each phase run concurrently.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
		go c.runShutdown()
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownCh returns a channel that's closed when shutdown is initiated.
func (c *Coordinator) ShutdownCh() <-chan struct{} {
	return c.shutdownCh
}

// runShutdown executes the shutdown sequence.
func (c *Coordinator) runShutdown() {
	defer close(c.done)

	// Use background context so shutdown gets its full timeout
	// regardless of the caller's context state.
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.logger.Info("starting graceful shutdown",
		zap.Duration("timeout", c.timeout),
	)

	phases := []Phase{PhaseDrain, PhaseShutdown, PhaseCleanup}
	var errors []error

	for _, phase := range phases {
		c.mu.Lock()
		services := c.services[phase]
		c.mu.Unlock()

		if len(services) == 0 {
			continue
		}

		c.logger.Info("executing shutdown phase",
			zap.String("phase", phase.String()),
			zap.Int("services", len(services)),
		)

		phaseErrors := c.shutdownPhase(ctx, phase, services)
		errors = append(errors, phaseErrors...)

		if ctx.Err() != nil {
			c.logger.Error("shutdown timeout exceeded",
				zap.String("phase", phase.String()),
				zap.Error(ctx.Err()),
			)
			break
		}
	}

	if len(errors) > 0 {
		c.logger.Error("shutdown completed with errors",
			zap.Int("error_count", len(errors)),
		)
	} else {
		c.logger.Info("graceful shutdown complete")
	}
}

// shutdownPhase shuts down all services in a phase concurrently.
func (c *Coordinator) shutdownPhase(ctx context.Context, phase Phase, services []Service) []error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(services))

	for _, svc := range services {
		wg.Add(1)
		go func(s Service) {
			defer wg.Done()

			start := time.Now()

			if err := s.Shutdown(ctx); err != nil {
				c.logger.Error("service shutdown failed",
					zap.String("service", s.Name()),
					zap.String("phase", phase.String()),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				errCh <- fmt.Errorf("%s: %w", s.Name(), err)
				return
			}

			c.logger.Debug("service shutdown complete",
				zap.String("service", s.Name()),
				zap.String("phase", phase.String()),
				zap.Duration("duration", time.Since(start)),
			)
		}(svc)
	}

	wg.Wait()
	close(errCh)

	errors := make([]error, 0, len(services))
	for err := range errCh {
		errors = append(errors, err)
	}

	return errors
}

// ReadinessProbe provides a readiness probe that respects shutdown state.
// Once shutdown begins the probe reports not ready, letting a load
// balancer stop routing before in-flight requests drain.
type ReadinessProbe struct {
	coordinator *Coordinator
	mu          sync.RWMutex
	draining    bool
}

// NewReadinessProbe creates a new readiness probe.
func NewReadinessProbe(coordinator *Coordinator) *ReadinessProbe {
	rp := &ReadinessProbe{
		coordinator: coordinator,
	}

	go rp.watchShutdown()

	return rp
}

func (rp *ReadinessProbe) watchShutdown() {
	<-rp.coordinator.ShutdownCh()
	rp.mu.Lock()
	rp.draining = true
	rp.mu.Unlock()
}

// IsReady returns true if the service is ready to accept traffic.
func (rp *ReadinessProbe) IsReady() bool {
	rp.mu.RLock()
	defer rp.mu.RUnlock()
	return !rp.draining
}
