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

package fuseserver

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"

	"github.com/kurafs/fusefs/pkg/adapter"
	"github.com/kurafs/fusefs/pkg/cli"
	"github.com/kurafs/fusefs/pkg/config"
	"github.com/kurafs/fusefs/pkg/fusefs"
	"github.com/kurafs/fusefs/pkg/log"
)

var FuseServerCmd = &cli.Command{
	Run:       fuseServerCmdRun,
	UsageLine: "fuse-server [-config file] [-provider name] [-unmount] [mount flags] [logger flags] <mount-point>",
	Short:     "mount a filesystem provider at the specified mount point",
	Long: `
fuse-server mounts one of the built-in providers and serves kernel requests
until it is unmounted, either externally (umount, fusermount -u) or by
SIGINT/SIGTERM.

Providers:
    hello    a read-only root holding hello.txt
    memfs    an in-memory tree, lost on unmount
    bolt     a persistent tree in the bolt database at -bolt-path
    remote   a provider served by 'storage-server' at -remote-addr

Flags given on the command line override values read from -config. With
-unmount, the mount point is unmounted and the command exits.
    `,
}

func fuseServerCmdRun(cmd *cli.Command, args []string) error {
	var (
		configFlag  string
		unmountFlag bool
		flagged     = config.DefaultMount()
		logFlags    cli.LogFlags
	)

	cmd.FlagSet.StringVar(&configFlag, "config", "",
		"YAML configuration file (see the mount section)")
	cmd.FlagSet.StringVar(&flagged.Provider, "provider", flagged.Provider,
		"Provider to mount [hello|memfs|bolt|remote]")
	cmd.FlagSet.StringVar(&flagged.BoltPath, "bolt-path", flagged.BoltPath,
		"Database file for the bolt provider")
	cmd.FlagSet.StringVar(&flagged.RemoteAddr, "remote-addr", flagged.RemoteAddr,
		"Address of the storage server for the remote provider [host:port]")
	cmd.FlagSet.StringVar(&flagged.FsName, "fs-name", flagged.FsName,
		"Device name shown in /proc/mounts")
	cmd.FlagSet.BoolVar(&flagged.AllowOther, "allow-other", flagged.AllowOther,
		"Allow other users to access the mount (needs user_allow_other)")
	cmd.FlagSet.BoolVar(&flagged.Debug, "debug", flagged.Debug,
		"Log every FUSE request and response")
	cmd.FlagSet.BoolVar(&flagged.DirectIO, "direct-io", flagged.DirectIO,
		"Bypass the kernel page cache")
	cmd.FlagSet.Var(&flagged.EntryTimeout, "entry-timeout",
		"Kernel name cache lifetime (negative disables)")
	cmd.FlagSet.Var(&flagged.AttrTimeout, "attr-timeout",
		"Kernel attribute cache lifetime (negative disables)")
	cmd.FlagSet.StringVar(&flagged.MetricsAddr, "metrics-addr", flagged.MetricsAddr,
		"Serve prometheus metrics on this address [host:port]")
	cmd.FlagSet.BoolVar(&unmountFlag, "unmount", false,
		"Unmount filesystem at specified directory")
	logFlags.Register(&cmd.FlagSet)

	if err := cmd.FlagSet.Parse(args); err != nil {
		return cli.CmdParseError(err)
	}

	if cmd.FlagSet.NArg() > 1 {
		return cli.CmdParseError(
			fmt.Errorf("unrecognized arguments: %v", cmd.FlagSet.Args()[1:]))
	}
	if cmd.FlagSet.NArg() == 0 {
		return cli.CmdParseError(errors.New("unspecified mount-point"))
	}
	mountPoint := cmd.FlagSet.Arg(0)

	logger := logFlags.Logger()

	if unmountFlag {
		if err := unmount(logger, mountPoint); err != nil {
			logger.Error(err.Error())
			return err
		}
		return nil
	}

	cfg, err := resolve(&cmd.FlagSet, configFlag, flagged)
	if err != nil {
		return cli.CmdParseError(err)
	}

	wait, shutdown, err := Start(logger, cfg, mountPoint)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		for sig := range signals {
			logger.Infof("received %s, unmounting %s", sig, mountPoint)
			if err := unmount(logger, mountPoint); err != nil {
				logger.Errorf("unmount failed: %v", err)
			}
		}
	}()

	wait()
	shutdown()
	return nil
}

// resolve layers the flags the user actually set over the configuration file
// (or the defaults, without one).
func resolve(fs *flag.FlagSet, configPath string, flagged config.Mount) (config.Mount, error) {
	cfg := config.DefaultMount()
	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = f.Mount
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "provider":
			cfg.Provider = flagged.Provider
		case "bolt-path":
			cfg.BoltPath = flagged.BoltPath
		case "remote-addr":
			cfg.RemoteAddr = flagged.RemoteAddr
		case "fs-name":
			cfg.FsName = flagged.FsName
		case "allow-other":
			cfg.AllowOther = flagged.AllowOther
		case "debug":
			cfg.Debug = flagged.Debug
		case "direct-io":
			cfg.DirectIO = flagged.DirectIO
		case "entry-timeout":
			cfg.EntryTimeout = flagged.EntryTimeout
		case "attr-timeout":
			cfg.AttrTimeout = flagged.AttrTimeout
		case "metrics-addr":
			cfg.MetricsAddr = flagged.MetricsAddr
		}
	})
	return cfg, cfg.Validate()
}

// Start mounts the configured provider at mountPoint. wait blocks until the
// filesystem is unmounted; shutdown then releases the provider and the
// metrics listener. shutdown also unmounts if the mount is still live.
func Start(logger *log.Logger, cfg config.Mount, mountPoint string) (wait func(), shutdown func(), err error) {
	provider, closer, err := openProvider(logger, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s provider: %w", cfg.Provider, err)
	}

	opts := []adapter.Option{adapter.WithLogger(logger)}
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, adapter.WithMetrics(adapter.NewMetrics(reg)))

		metricsServer, err = serveMetrics(logger, cfg.MetricsAddr, reg)
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
	}

	server, err := fusefs.Mount(fusefs.Options{
		Mountpoint:   mountPoint,
		Adapter:      adapter.New(provider, opts...),
		FsName:       cfg.FsName,
		AllowOther:   cfg.AllowOther,
		Debug:        cfg.Debug,
		DirectIO:     cfg.DirectIO,
		EntryTimeout: time.Duration(cfg.EntryTimeout),
		AttrTimeout:  time.Duration(cfg.AttrTimeout),
		Logger:       logger,
	})
	if err != nil {
		if metricsServer != nil {
			metricsServer.Close()
		}
		closer.Close()
		return nil, nil, err
	}
	logger.Infof("serving %s provider at %s", cfg.Provider, mountPoint)

	shutdown = func() {
		// Returns an error once the kernel has already dropped the mount.
		_ = server.Unmount()
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(ctx)
		}
		if err := closer.Close(); err != nil {
			logger.Errorf("closing %s provider: %v", cfg.Provider, err)
		}
	}
	return server.Wait, shutdown, nil
}

func serveMetrics(logger *log.Logger, addr string, reg *prometheus.Registry) (*http.Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux}
	go func() {
		logger.Infof("serving metrics on %s", l.Addr())
		if err := server.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server error: %v", err)
		}
	}()
	return server, nil
}

// unmount detaches the filesystem at mountPoint. umount(2) needs
// CAP_SYS_ADMIN; unprivileged users go through the setuid fusermount helper.
func unmount(logger *log.Logger, mountPoint string) error {
	err := unix.Unmount(mountPoint, 0)
	if err == unix.EPERM {
		err = fusermount(mountPoint)
	}
	if err != nil {
		return fmt.Errorf("unmounting %s: %w", mountPoint, err)
	}
	logger.Infof("unmounted point: %s", mountPoint)
	return nil
}

func fusermount(mountPoint string) error {
	bin, err := exec.LookPath("fusermount3")
	if err != nil {
		if bin, err = exec.LookPath("fusermount"); err != nil {
			return fmt.Errorf("fusermount/fusermount3 not found: %w", err)
		}
	}
	if out, err := exec.Command(bin, "-u", mountPoint).CombinedOutput(); err != nil {
		return fmt.Errorf("%s -u: %v: %s", bin, err, out)
	}
	return nil
}
