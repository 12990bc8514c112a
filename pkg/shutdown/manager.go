package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30},
	})

	componentShutdownDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "component_shutdown_duration_seconds",
		Help:    "Time taken to shutdown individual components",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 25, 30},
	}, []string{"component"})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc represents a function that shuts down a component
type ShutdownFunc func(context.Context) error

// Component represents a registered shutdown component
type Component struct {
	ShutdownFunc ShutdownFunc
	Name         string
}

// Manager coordinates graceful shutdown of all service components.
// Components shut down in REVERSE registration order (LIFO): workers stop
// generating work before servers stop accepting requests before the database
// closes.
type Manager struct {
	logger     *zap.Logger
	components []Component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:     logger,
		components: make([]Component, 0),
		timeout:    timeout,
	}
}

// Register adds a shutdown function to be called during graceful shutdown
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, Component{Name: name, ShutdownFunc: fn})

	sm.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then executes graceful
// shutdown of all registered components
func (sm *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	sm.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	sm.Shutdown()
}

// Shutdown runs all registered shutdown functions in LIFO order
func (sm *Manager) Shutdown() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	components := make([]Component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		componentStart := time.Now()

		sm.logger.Info("Shutting down component", zap.String("component", component.Name))

		if err := component.ShutdownFunc(ctx); err != nil {
			shutdownErrors.WithLabelValues(component.Name).Inc()
			sm.logger.Error("Component shutdown failed",
				zap.String("component", component.Name),
				zap.Error(err),
			)
		}

		componentShutdownDuration.WithLabelValues(component.Name).Observe(time.Since(componentStart).Seconds())
	}

	shutdownDuration.Observe(time.Since(start).Seconds())
	sm.logger.Info("Graceful shutdown complete", zap.Duration("duration", time.Since(start)))
}
