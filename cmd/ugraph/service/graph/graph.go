/*
	graph package serves an executor over gRPC as part of the ugraph
	service group.
*/

package graph

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/mycok/uGraph/store/remote"
)

// Service exposes a graph to remote clients.
type Service struct {
	cfg Config
}

// New returns a graph service configured with cfg.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("graph service: config validation failed: %w", err)
	}

	return &Service{cfg: cfg}, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return "graph" }

// Run serves the graph and blocks until the context gets cancelled or the
// server fails.
func (svc *Service) Run(ctx context.Context) error {
	l := svc.cfg.Listener
	if l == nil {
		var err error
		if l, err = net.Listen("tcp", svc.cfg.ListenAddr); err != nil {
			return err
		}
	}
	defer func() { _ = l.Close() }()

	srv := grpc.NewServer()
	remote.NewServer(svc.cfg.Executor, svc.cfg.Logger).Register(srv)

	go func() {
		<-ctx.Done()
		srv.Stop()
	}()

	svc.cfg.Logger.WithField("addr", l.Addr().String()).Info("started service")

	// Serve returns nil once Stop has been called, or ErrServerStopped when
	// the context was cancelled before it started.
	if err := srv.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
