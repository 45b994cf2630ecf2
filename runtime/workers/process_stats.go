package workers

import (
	"context"
	"estate-live/contract"
	"estate-live/observability"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*ProcessStatsWorker)(nil)

// HubCounter is the part of the hub the stats worker reports on.
type HubCounter interface {
	Connections() int
	Registry() contract.IRegistry
}

// ProcessStatsWorker samples the hub process (RSS, CPU) and its connection
// counts at a fixed interval, publishing them as gauges and a debug log line.
type ProcessStatsWorker struct {
	log      *slog.Logger
	hub      HubCounter
	metrics  *observability.Metrics
	interval time.Duration
}

func NewProcessStatsWorker(log *slog.Logger, hub HubCounter, metrics *observability.Metrics, interval time.Duration) *ProcessStatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ProcessStatsWorker{log: log, hub: hub, metrics: metrics, interval: interval}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *ProcessStatsWorker) sample(p *process.Process) {
	connections := w.hub.Connections()
	users := w.hub.Registry().Len()
	w.metrics.Connections.Set(float64(connections))
	w.metrics.RegisteredUsers.Set(float64(users))

	memInfo, err := p.MemoryInfo()
	if err != nil {
		w.log.Error("Failed to collect memory stats", "err", err)
		return
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Failed to collect cpu stats", "err", err)
		return
	}
	w.metrics.ProcessRSSBytes.Set(float64(memInfo.RSS))
	w.metrics.ProcessCPU.Set(cpu)

	w.log.Debug("Hub stats",
		"connections", connections,
		"registered_users", users,
		"rss_bytes", memInfo.RSS,
		"cpu_percent", cpu)
}
