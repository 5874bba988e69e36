package graph

import (
	"errors"
	"io"
	"net"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/store"
)

// Config defines configurations for the graph service.
type Config struct {
	// Executor served to remote clients, usually the federated store.
	Executor store.Executor

	// Address to listen on for gRPC connections.
	ListenAddr string

	// An already bound listener. If set, ListenAddr is ignored.
	Listener net.Listener

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	if cfg.Executor == nil {
		err = multierror.Append(err, errors.New("graph executor not provided"))
	}

	if cfg.ListenAddr == "" && cfg.Listener == nil {
		err = multierror.Append(err, errors.New("listen address not provided"))
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
