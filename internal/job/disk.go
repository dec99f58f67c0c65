package job

import (
	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/disk"
)

// DiskMonitor answers free-space questions for the artifact volume. It is
// disabled entirely on deployments with ample storage.
type DiskMonitor struct {
	logger      hclog.Logger
	path        string
	thresholdMB uint64
	enabled     bool

	// usage is swappable for tests.
	usage func(path string) (*disk.UsageStat, error)
}

// NewDiskMonitor watches the volume holding path.
func NewDiskMonitor(logger hclog.Logger, path string, thresholdMB int, enabled bool) *DiskMonitor {
	return &DiskMonitor{
		logger:      logger.Named("disk"),
		path:        path,
		thresholdMB: uint64(thresholdMB),
		enabled:     enabled,
		usage:       disk.Usage,
	}
}

// SetUsage replaces the stat source, for tests.
func (m *DiskMonitor) SetUsage(fn func(string) (*disk.UsageStat, error)) { m.usage = fn }

// Enabled reports whether space checks are active.
func (m *DiskMonitor) Enabled() bool { return m.enabled }

// FreeMB returns free space in megabytes, or a large value when the stat
// fails so a broken monitor never blocks jobs.
func (m *DiskMonitor) FreeMB() float64 {
	stat, err := m.usage(m.path)
	if err != nil {
		m.logger.Warn("disk usage check failed", "path", m.path, "error", err)
		return 1 << 20
	}
	return float64(stat.Free) / (1024 * 1024)
}

// Check reports whether free space exceeds the configured floor.
func (m *DiskMonitor) Check() (bool, float64) {
	if !m.enabled {
		return true, 0
	}
	free := m.FreeMB()
	return free > float64(m.thresholdMB), free
}

// CheckFor reports whether there is headroom to transcode a download of the
// given size. Transcoding needs roughly 1.5x the source on top of the floor.
func (m *DiskMonitor) CheckFor(sourceBytes int64) (bool, float64) {
	if !m.enabled {
		return true, 0
	}
	free := m.FreeMB()
	needMB := float64(sourceBytes)*1.5/(1024*1024) + float64(m.thresholdMB)
	return free > needMB, free
}
