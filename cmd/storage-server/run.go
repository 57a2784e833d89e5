// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storageserver

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/kurafs/fusefs/pkg/cli"
	"github.com/kurafs/fusefs/pkg/config"
	"github.com/kurafs/fusefs/pkg/log"
)

var StorageServerCmd = &cli.Command{
	Run:       storageServerCmdRun,
	UsageLine: "storage-server [-config file] [-ip ip] [-port port] [-provider memfs|bolt] [-store-path path] [-token-idle duration] [logger flags]",
	Short:     "serve a filesystem provider over gRPC",
	Long: `
storage-server exposes a provider to 'fuse-server -provider remote'. The RPC
service and the prometheus /metrics endpoint share one port.

Providers:
    memfs    an in-memory tree, lost when the server stops
    bolt     a persistent tree in the bolt database at -store-path

Raw opens a client leaves untouched for -token-idle (default 10m) are closed
on its behalf, so clients that disconnect without closing do not pin files.

Calls run with the identity (uid, gid, pid) of the process that issued them
on the mounting host.
    `,
}

func storageServerCmdRun(cmd *cli.Command, args []string) error {
	var (
		configFlag string
		flagged    = config.DefaultStorage()
		logFlags   cli.LogFlags
	)
	cmd.FlagSet.StringVar(&configFlag, "config", "",
		"YAML configuration file (see the storage section)")
	cmd.FlagSet.IntVar(&flagged.Port, "port", flagged.Port,
		"Port which the server will run on")
	cmd.FlagSet.StringVar(&flagged.IP, "ip", "127.0.0.1",
		"IP on which the server will run on")
	cmd.FlagSet.StringVar(&flagged.Provider, "provider", flagged.Provider,
		"Provider to serve [memfs|bolt]")
	cmd.FlagSet.StringVar(&flagged.StorePath, "store-path", flagged.StorePath,
		"Database file for the bolt provider")
	cmd.FlagSet.Var(&flagged.TokenIdle, "token-idle",
		"Close raw opens idle this long; 0 disables")
	logFlags.Register(&cmd.FlagSet)

	if err := cmd.FlagSet.Parse(args); err != nil {
		return cli.CmdParseError(err)
	}
	if cmd.FlagSet.NArg() > 0 {
		return cli.CmdParseError(
			fmt.Errorf("unrecognized arguments: %v", cmd.FlagSet.Args()))
	}

	cfg, err := resolve(&cmd.FlagSet, configFlag, flagged)
	if err != nil {
		return cli.CmdParseError(err)
	}

	logger := logFlags.Logger()
	wait, shutdown, err := Start(logger, cfg)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		sig := <-signals
		logger.Infof("received %s, shutting down", sig)
		shutdown()
	}()

	err = wait()
	shutdown()
	return err
}

func resolve(fs *flag.FlagSet, configPath string, flagged config.Storage) (config.Storage, error) {
	cfg := config.DefaultStorage()
	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = f.Storage
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.IP = flagged.IP
		case "port":
			cfg.Port = flagged.Port
		case "provider":
			cfg.Provider = flagged.Provider
		case "store-path":
			cfg.StorePath = flagged.StorePath
		case "token-idle":
			cfg.TokenIdle = flagged.TokenIdle
		}
	})
	if cfg.IP == "" {
		cfg.IP = flagged.IP
	}
	return cfg, cfg.Validate()
}

// Start opens the configured provider and serves it on cfg.IP:cfg.Port. wait
// blocks until the listeners stop; shutdown stops them and closes the
// provider. shutdown is safe to call more than once.
func Start(logger *log.Logger, cfg config.Storage) (wait func() error, shutdown func(), err error) {
	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.IP, fmt.Sprint(cfg.Port)))
	if err != nil {
		logger.Errorf("failed to open TCP port: %v", err)
		return nil, nil, err
	}
	return Serve(logger, lis, cfg)
}

// Serve is Start over an existing listener.
func Serve(logger *log.Logger, lis net.Listener, cfg config.Storage) (wait func() error, shutdown func(), err error) {
	storageServer, err := newStorageServer(logger, cfg)
	if err != nil {
		lis.Close()
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(storageServer.collectors()...)

	// Create a cmux; multiplex grpc and http over the same listener. The
	// remote protocol uses its own codec, so match on the content-type prefix
	// ("application/grpc+cbor").
	mux := cmux.New(lis)
	grpcL := mux.Match(cmux.HTTP2HeaderFieldPrefix("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	grpcServer := grpc.NewServer()
	storageServer.register(grpcServer)

	httpMux := http.NewServeMux()
	httpMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpServer := &http.Server{Handler: httpMux}

	// A failing listener cancels gctx, which also stops the sweeper.
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.Infof("serving RPC server on %s", lis.Addr())
		if err := grpcServer.Serve(grpcL); err != nil && !closed(err) {
			logger.Errorf("grpc server error: %v", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("serving HTTP server on %s", lis.Addr())
		if err := httpServer.Serve(httpL); err != nil && err != http.ErrServerClosed && !closed(err) {
			logger.Errorf("http server error: %v", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := mux.Serve(); err != nil && !closed(err) {
			logger.Errorf("cmux server error: %v", err)
			return err
		}
		return nil
	})

	done := make(chan struct{})
	if idle := time.Duration(cfg.TokenIdle); idle > 0 {
		g.Go(func() error {
			storageServer.sweep(gctx, done, idle)
			return nil
		})
	}

	var once sync.Once
	shutdown = func() {
		once.Do(func() {
			close(done)
			lis.Close()
			grpcServer.Stop()
			httpServer.Close()
			if err := storageServer.Close(); err != nil {
				logger.Errorf("closing %s provider: %v", cfg.Provider, err)
			}
		})
	}
	return g.Wait, shutdown, nil
}

func closed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed)
}
