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

package adapter

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kurafs/fusefs/pkg/vfs"
)

// Metrics instruments adapter entry points. A nil *Metrics records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	handles  prometheus.Gauge
	pending  prometheus.Gauge
	flushed  prometheus.Counter
	fallback *prometheus.CounterVec
}

// NewMetrics creates the adapter's collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fusefs",
			Subsystem: "adapter",
			Name:      "operations_total",
			Help:      "Filesystem operations by name and result.",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fusefs",
			Subsystem: "adapter",
			Name:      "operation_duration_seconds",
			Help:      "Latency of filesystem operations, provider time included.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 9),
		}, []string{"op"}),
		handles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fusefs",
			Subsystem: "adapter",
			Name:      "open_handles",
			Help:      "File handles currently open.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fusefs",
			Subsystem: "adapter",
			Name:      "pending_creates",
			Help:      "Files created by mknod and not yet flushed to the provider.",
		}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fusefs",
			Subsystem: "adapter",
			Name:      "flushed_bytes_total",
			Help:      "Bytes written back to the provider from buffered handles.",
		}),
		fallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fusefs",
			Subsystem: "adapter",
			Name:      "fallbacks_total",
			Help:      "Operations emulated with whole-file reads and writes.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.ops, m.latency, m.handles, m.pending, m.flushed, m.fallback)
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, resultLabel(err)).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setOpen(handles, pending int) {
	if m == nil {
		return
	}
	m.handles.Set(float64(handles))
	m.pending.Set(float64(pending))
}

func (m *Metrics) addFlushed(n int) {
	if m == nil {
		return
	}
	m.flushed.Add(float64(n))
}

func (m *Metrics) fellBack(op string) {
	if m == nil {
		return
	}
	m.fallback.WithLabelValues(op).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var verr *vfs.Error
	if !errors.As(err, &verr) {
		return "io"
	}
	switch verr.Kind {
	case vfs.KindPermissionDenied:
		return "permission_denied"
	case vfs.KindNotFound:
		return "not_found"
	case vfs.KindUnsupported:
		return "unsupported"
	case vfs.KindInvalidArgument:
		return "invalid_argument"
	case vfs.KindStaleHandle:
		return "stale_handle"
	default:
		return "io"
	}
}
