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
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/kurafs/fusefs/pkg/config"
	"github.com/kurafs/fusefs/pkg/log"
	"github.com/kurafs/fusefs/pkg/providers/boltfs"
	"github.com/kurafs/fusefs/pkg/providers/memfs"
	"github.com/kurafs/fusefs/pkg/remote"
	"github.com/kurafs/fusefs/pkg/vfs"
)

// storageServer is the provider behind the remote protocol, plus whatever
// has to be released when the process stops.
type storageServer struct {
	provider vfs.Provider
	remote   *remote.Server
	closer   io.Closer
	logger   *log.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newStorageServer(logger *log.Logger, cfg config.Storage) (*storageServer, error) {
	s := &storageServer{logger: logger, closer: nopCloser{}}
	switch cfg.Provider {
	case "memfs":
		s.provider = memfs.New()
	case "bolt":
		store, err := boltfs.Open(cfg.StorePath, boltfs.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		s.provider, s.closer = store, store
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	s.remote = remote.NewServer(s.provider, logger)
	return s, nil
}

// sweep reclaims raw opens abandoned by clients until done is closed or
// ctx is canceled.
func (s *storageServer) sweep(ctx context.Context, done <-chan struct{}, idle time.Duration) {
	period := idle / 2
	if period <= 0 {
		period = idle
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.remote.Sweep(ctx, idle); n > 0 {
				s.logger.Warnf("closed %d idle raw opens", n)
			}
		}
	}
}

func (s *storageServer) register(g *grpc.Server) {
	s.remote.Register(g)
}

// collectors reports the raw files held open on behalf of clients.
func (s *storageServer) collectors() []prometheus.Collector {
	cs := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fusefs",
			Subsystem: "remote",
			Name:      "open_tokens",
			Help:      "Raw file tokens issued to clients and not yet closed.",
		}, func() float64 { return float64(s.remote.OpenTokens()) }),
	}
	if store, ok := s.provider.(*boltfs.Store); ok {
		cs = append(cs, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "fusefs",
			Subsystem: "boltfs",
			Name:      "open_files",
			Help:      "Raw files open in the bolt store.",
		}, func() float64 { return float64(store.OpenFiles()) }))
	}
	return cs
}

func (s *storageServer) Close() error {
	return s.closer.Close()
}
