package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const metricsEndpoint = "/metrics"

// Config defines configurations for the metrics service.
type Config struct {
	// Gatherer whose metrics are exposed.
	Gatherer prometheus.Gatherer

	// Address to listen on for scrape requests.
	ListenAddr string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	if cfg.Gatherer == nil {
		err = multierror.Append(err, errors.New("metrics gatherer not provided"))
	}

	if cfg.ListenAddr == "" {
		err = multierror.Append(err, errors.New("listen address not provided"))
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Service exposes prometheus metrics over HTTP.
type Service struct {
	cfg    Config
	router *http.ServeMux
}

// New returns a metrics service configured with cfg.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("metrics service: config validation failed: %w", err)
	}

	svc := &Service{cfg: cfg, router: http.NewServeMux()}
	svc.router.Handle(metricsEndpoint, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return svc, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return "metrics" }

// Handler returns the HTTP handler serving the metrics endpoint.
func (svc *Service) Handler() http.Handler { return svc.router }

// Run executes the service and blocks until the context gets cancelled
// or an error occurs.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{Handler: svc.router}

	go func() {
		<-ctx.Done()

		_ = srv.Close()
	}()

	svc.cfg.Logger.WithField("addr", svc.cfg.ListenAddr).Info("started service")

	if err = srv.Serve(l); errors.Is(err, http.ErrServerClosed) {
		// Server closed gracefully.
		err = nil
	}

	return err
}
