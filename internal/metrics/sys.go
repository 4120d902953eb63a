package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Health is the process snapshot served by the status endpoint and /stats.
type Health struct {
	Uptime           string `json:"uptime"`
	HeapMB           uint64 `json:"heap_mb"`
	SysMB            uint64 `json:"sys_mb"`
	NumGC            uint32 `json:"num_gc"`
	Goroutines       int    `json:"goroutines"`
	DatabaseSize     string `json:"database_size"`
	RunningRegenJobs int    `json:"running_regen_jobs"`
}

// Snapshot collects runtime figures. dbPath may be a file or a directory.
func Snapshot(dbPath string, started time.Time, runningJobs int) Health {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Health{
		Uptime:           time.Since(started).Truncate(time.Second).String(),
		HeapMB:           m.HeapAlloc / 1024 / 1024,
		SysMB:            m.Sys / 1024 / 1024,
		NumGC:            m.NumGC,
		Goroutines:       runtime.NumGoroutine(),
		DatabaseSize:     humanSize(diskUsage(dbPath)),
		RunningRegenJobs: runningJobs,
	}
}

// Lines renders the snapshot for chat.
func (h Health) Lines() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", h.Uptime)
	fmt.Fprintf(&b, "Heap: %d MB (sys %d MB, %d GC)\n", h.HeapMB, h.SysMB, h.NumGC)
	fmt.Fprintf(&b, "Goroutines: %d\n", h.Goroutines)
	fmt.Fprintf(&b, "Database: %s\n", h.DatabaseSize)
	fmt.Fprintf(&b, "Regenerations running: %d", h.RunningRegenJobs)
	return b.String()
}

// diskUsage sums the database file and its WAL/SHM siblings.
func diskUsage(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		size := info.Size()
		for _, suffix := range []string{"-wal", "-shm"} {
			if side, err := os.Stat(path + suffix); err == nil {
				size += side.Size()
			}
		}
		return size
	}

	var size int64
	_ = filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			size += fi.Size()
		}
		return nil
	})
	return size
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
