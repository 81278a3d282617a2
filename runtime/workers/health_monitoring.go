package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"duplex/observability"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the engine process and the engine counters
// on a fixed interval and logs one line per sample. The /debug/stats
// endpoint serves the same snapshot on demand.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	stats          *observability.Stats
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, stats *observability.Stats,
	metricInterval time.Duration) *HealthMonitoringWorker {
	if metricInterval <= 0 {
		metricInterval = 30 * time.Second
	}
	return &HealthMonitoringWorker{log: log, stats: stats, metricInterval: metricInterval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping health monitoring")
			return nil
		case <-ticker.C:
			rss, cpu, status, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}

			snap := w.stats.GetLatest()
			w.log.Info("Engine health",
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"goroutines", snap.Goroutines,
				"active_connections", snap.ActiveConnections,
				"messages_ingested", snap.MessagesIngested,
				"events_broadcast", snap.EventsBroadcast,
				"events_dropped", snap.EventsDropped,
				"typing_expirations", snap.TypingExpirations,
				"rejected_operations", snap.RejectedOperations)
		}
	}
}

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
