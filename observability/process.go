package observability

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

type ProcessStats struct {
	Pid        int32   `json:"pid"`
	Status     string  `json:"status"`
	CpuPercent float64 `json:"cpu_percent"`
	RamBytes   uint64  `json:"ram_bytes"`
}

// CurrentProcessStats reads memory, CPU and OS status of the running process.
func CurrentProcessStats() (ProcessStats, error) {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return ProcessStats{}, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{Pid: pid, Status: status, CpuPercent: cpuPercent, RamBytes: memInfo.RSS}, nil
}
