// Package monitor serves the state of a replay table over HTTP
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aunum/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samuelfneumann/godqn/replay"
)

const shutdownTimeout = 2 * time.Second

// InfoSource is anything that can report on a replay table
type InfoSource interface {
	Info() replay.Info
}

// Monitor exposes the following endpoints for a replay table:
//
//	GET /healthz	liveness
//	GET /stats	the table's replay.Info as JSON
//	GET /metrics	prometheus metrics
type Monitor struct {
	source   InfoSource
	registry *prometheus.Registry
	router   *gin.Engine
}

// New creates a new Monitor of source
func New(source InfoSource) (*Monitor, error) {
	if source == nil {
		return nil, fmt.Errorf("new: source cannot be nil")
	}

	m := &Monitor{
		source:   source,
		registry: prometheus.NewRegistry(),
	}
	if err := m.register(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/healthz", m.handleHealth)
	r.GET("/stats", m.handleStats)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry,
		promhttp.HandlerOpts{})))
	m.router = r

	return m, nil
}

func (m *Monitor) register() error {
	gauge := func(name, help string, f func(replay.Info) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "replay",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(m.source.Info()) })
	}
	counter := func(name, help string, f func(replay.Info) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "replay",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(m.source.Info()) })
	}

	collectors := []prometheus.Collector{
		gauge("size", "Number of items in the table.",
			func(i replay.Info) float64 { return float64(i.Size) }),
		gauge("min_size", "Items required before sampling is allowed.",
			func(i replay.Info) float64 { return float64(i.MinSize) }),
		gauge("max_size", "Capacity of the table.",
			func(i replay.Info) float64 { return float64(i.MaxSize) }),
		counter("inserts_total", "Items inserted into the table.",
			func(i replay.Info) float64 { return float64(i.Inserts) }),
		counter("samples_total", "Items sampled from the table.",
			func(i replay.Info) float64 { return float64(i.Samples) }),
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (m *Monitor) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, m.source.Info())
}

// Handler returns the http.Handler serving the monitor's endpoints
func (m *Monitor) Handler() http.Handler {
	return m.router
}

// ListenAndServe serves the monitor on addr until ctx is cancelled
func (m *Monitor) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: m.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("monitor: shutdown: %v", err)
		}
	}()

	log.Infof("replay monitor listening on %v", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("listenAndServe: %v", err)
	}
	return nil
}
