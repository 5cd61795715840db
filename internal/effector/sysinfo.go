package effector

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/voxos-ai/voxos/internal/capability"
)

// SysInfo reports a CPU, memory, and disk summary. Metrics come from /proc
// and statfs; anything unreadable is simply left out rather than failing the
// whole query.
type SysInfo struct {
	// ProcRoot overrides /proc for tests.
	ProcRoot string

	// DiskPath is the filesystem to report on. Empty means "/".
	DiskPath string
}

func (e *SysInfo) Execute(_ context.Context, _ capability.ValidatedCall) (Result, error) {
	data := map[string]any{
		"cpu_count": runtime.NumCPU(),
	}
	var parts []string
	parts = append(parts, fmt.Sprintf("%d CPUs", runtime.NumCPU()))

	if load, err := e.loadAvg(); err == nil {
		data["load_1m"] = load
		parts = append(parts, fmt.Sprintf("load %.2f", load))
	}
	if total, avail, err := e.memInfo(); err == nil {
		data["mem_total_mb"] = total / 1024
		data["mem_available_mb"] = avail / 1024
		parts = append(parts, fmt.Sprintf("memory %d/%d MB free", avail/1024, total/1024))
	}
	if total, free, err := e.diskInfo(); err == nil {
		data["disk_total_gb"] = total
		data["disk_free_gb"] = free
		parts = append(parts, fmt.Sprintf("disk %d/%d GB free", free, total))
	}

	return Result{
		Message: strings.Join(parts, ", "),
		Data:    data,
	}, nil
}

func (e *SysInfo) procPath(name string) string {
	root := e.ProcRoot
	if root == "" {
		root = "/proc"
	}
	return root + "/" + name
}

// loadAvg returns the 1-minute load average.
func (e *SysInfo) loadAvg() (float64, error) {
	raw, err := os.ReadFile(e.procPath("loadavg"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty loadavg")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// memInfo returns total and available memory in KiB.
func (e *SysInfo) memInfo() (total, available int64, err error) {
	raw, err := os.ReadFile(e.procPath("meminfo"))
	if err != nil {
		return 0, 0, err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			available, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("MemTotal not found")
	}
	return total, available, nil
}

// diskInfo returns total and free space of DiskPath in GiB.
func (e *SysInfo) diskInfo() (total, free uint64, err error) {
	path := e.DiskPath
	if path == "" {
		path = "/"
	}
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return 0, 0, err
	}
	const gib = 1 << 30
	total = fs.Blocks * uint64(fs.Bsize) / gib
	free = fs.Bavail * uint64(fs.Bsize) / gib
	return total, free, nil
}
