package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/uGraph/cmd/ugraph/service"
	graphsvc "github.com/mycok/uGraph/cmd/ugraph/service/graph"
	metricssvc "github.com/mycok/uGraph/cmd/ugraph/service/metrics"
	"github.com/mycok/uGraph/federated"
	"github.com/mycok/uGraph/federated/library"
	"github.com/mycok/uGraph/metrics"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/kv"
	"github.com/mycok/uGraph/store/remote"
)

var (
	appName = "ugraph"
	appSHA  = "latest-app-git-sha" // Populated by the compiler at the linking stage.
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSHA,
		"host": host,
	})

	if err := configureAppEnv().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		_ = os.Stderr.Sync()

		os.Exit(1)
	}
}

func configureAppEnv() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSHA
	app.Usage = "federated property graph server"
	app.Commands = []*cli.Command{
		{
			Name:  "serve",
			Usage: "register the configured graphs and serve them over gRPC",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "graph-id",
					Value:   "federated",
					EnvVars: []string{"GRAPH_ID"},
					Usage:   "Id of the federated graph",
				},
				&cli.StringFlag{
					Name:    "config",
					EnvVars: []string{"GRAPHS_CONFIG"},
					Usage:   "YAML file listing the graphs to register on start-up",
				},
				&cli.StringFlag{
					Name:    "library-path",
					EnvVars: []string{"LIBRARY_PATH"},
					Usage:   "bbolt file backing the graph library (in-memory when empty)",
				},
				&cli.IntFlag{
					Name:    "grpc-port",
					Value:   8080,
					EnvVars: []string{"GRPC_PORT"},
					Usage:   "Exposed port for graph gRPC endpoints",
				},
				&cli.IntFlag{
					Name:    "metrics-port",
					Value:   9090,
					EnvVars: []string{"METRICS_PORT"},
					Usage:   "Exposed port for prometheus metrics",
				},
				&cli.BoolFlag{
					Name:    "verbose",
					EnvVars: []string{"VERBOSE"},
					Usage:   "Enable debug logging",
				},
			},
			Action: serve,
		},
	}

	return app
}

func serve(appCtx *cli.Context) error {
	if appCtx.Bool("verbose") {
		logger.Logger.SetLevel(logrus.DebugLevel)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	storeMetrics, err := metrics.NewStore(reg)
	if err != nil {
		return err
	}

	factories := store.NewFactoryRegistry()
	factories.Register(kv.StoreType, kv.NewFactory(storeMetrics, logger.WithField("component", "kv")))
	factories.Register(remote.StoreType, remote.NewFactory())

	lib, err := getLibrary(appCtx.String("library-path"))
	if err != nil {
		return err
	}

	fed, err := federated.New(federated.Config{
		GraphID:    appCtx.String("graph-id"),
		Factories:  factories,
		Library:    lib,
		Registerer: reg,
		Logger:     logger.WithField("component", "federated"),
	})
	if err != nil {
		_ = lib.Close()

		return err
	}
	defer func() { _ = fed.Close() }()

	if path := appCtx.String("config"); path != "" {
		cfg, err := loadBootstrap(path)
		if err != nil {
			return err
		}

		if err = addGraphs(fed, cfg, filepath.Dir(path), store.User{ID: appName}); err != nil {
			return err
		}
	}

	svcGroup, err := configureServices(fed, reg, appCtx)
	if err != nil {
		return err
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	// Launch a separate process to listen and respond to os signals
	// and trigger a graceful shutdown.
	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGHUP)

		select {
		case s := <-signalChan:
			logger.WithField("signal", s.String()).Info("shutting down due to os signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	if err = svcGroup.Run(ctx); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}

func configureServices(fed *federated.Store, reg *prometheus.Registry, appCtx *cli.Context) (*service.Group, error) {
	svcGrp := service.NewGroup(logger.WithField("component", "services"))

	svc, err := graphsvc.New(graphsvc.Config{
		Executor:   fed,
		ListenAddr: fmt.Sprintf(":%d", appCtx.Int("grpc-port")),
		Logger:     logger.WithField("service", "graph"),
	})
	if err != nil {
		return nil, err
	}
	svcGrp.Add(svc)

	metricsSvc, err := metricssvc.New(metricssvc.Config{
		Gatherer:   reg,
		ListenAddr: fmt.Sprintf(":%d", appCtx.Int("metrics-port")),
		Logger:     logger.WithField("service", "metrics"),
	})
	if err != nil {
		return nil, err
	}
	svcGrp.Add(metricsSvc)

	return svcGrp, nil
}

func getLibrary(path string) (library.Library, error) {
	if path == "" {
		logger.Info("using in-memory graph library")

		return library.NewInMemoryLibrary(), nil
	}

	logger.WithField("path", path).Info("using bbolt graph library")

	return library.NewBoltLibrary(path)
}
