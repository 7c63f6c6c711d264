package environment

import (
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is a best-effort snapshot of the host, reported at startup and
// through the API so operators can see where downloads will land and how
// much room is left.
type SystemInfo struct {
	Hostname        string  `json:"hostname"`
	Platform        string  `json:"platform"`
	PlatformVersion string  `json:"platform_version"`
	UptimeSec       uint64  `json:"uptime_sec"`
	RunMode         RunMode `json:"run_mode"`

	TotalMemoryBytes     uint64 `json:"total_memory_bytes"`
	AvailableMemoryBytes uint64 `json:"available_memory_bytes"`

	DownloadDir           string  `json:"download_dir"`
	DownloadDirTotalBytes uint64  `json:"download_dir_total_bytes"`
	DownloadDirFreeBytes  uint64  `json:"download_dir_free_bytes"`
	DownloadDirUsedPct    float64 `json:"download_dir_used_pct"`
}

// CollectSystemInfo gathers host, memory, and download-dir disk figures.
// Probes that fail leave their fields zeroed; the snapshot itself never
// errors.
func CollectSystemInfo(downloadDir string) SystemInfo {
	info := SystemInfo{
		DownloadDir: downloadDir,
		RunMode:     DetectRunMode(),
	}

	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
		info.UptimeSec = hi.Uptime
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemoryBytes = vm.Total
		info.AvailableMemoryBytes = vm.Available
	}

	if du, err := disk.Usage(downloadDir); err == nil {
		info.DownloadDirTotalBytes = du.Total
		info.DownloadDirFreeBytes = du.Free
		info.DownloadDirUsedPct = du.UsedPercent
	}

	return info
}
