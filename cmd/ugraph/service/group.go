package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Service describes a long-running part of the ugraph server.
type Service interface {
	// Name returns the name of the service.
	Name() string

	// Run executes the service and blocks until the context gets cancelled
	// or an error occurs.
	Run(context.Context) error
}

// Group runs the services of the ugraph server side by side. The first
// service to fail stops the others.
type Group struct {
	services []Service
	logger   *logrus.Entry
}

// NewGroup returns a group running services. If logger is nil an
// output-discarding logger is used.
func NewGroup(logger *logrus.Entry, services ...Service) *Group {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Group{services: services, logger: logger}
}

// Add appends svc to the group. It must be called before Run.
func (g *Group) Add(svc Service) { g.services = append(g.services, svc) }

// Len returns the number of services in the group.
func (g *Group) Len() int { return len(g.services) }

// Run starts every service and blocks until all of them have returned. The
// returned error lists the failure of every service that failed, prefixed
// with its name.
func (g *Group) Run(ctx context.Context) error {
	eg, runCtx := errgroup.WithContext(ctx)

	var (
		mu     sync.Mutex
		runErr error
	)

	for _, svc := range g.services {
		svc := svc
		eg.Go(func() error {
			logger := g.logger.WithField("service", svc.Name())
			logger.Info("starting service")

			if err := svc.Run(runCtx); err != nil {
				logger.WithField("err", err).Error("service failed")

				mu.Lock()
				runErr = multierror.Append(runErr, fmt.Errorf("%s: %w", svc.Name(), err))
				mu.Unlock()

				return err
			}

			logger.Info("service stopped")

			return nil
		})
	}

	_ = eg.Wait()

	return runErr
}
