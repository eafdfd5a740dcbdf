// Package sysstats samples host resource usage with gopsutil. Every metric is
// optional: a reading that fails leaves its section nil.
package sysstats

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/shirou/gopsutil/v4/sensors"
)

const gib = 1 << 30

type CPU struct {
	UsagePercent float64  `json:"usage_percent"`
	Count        int      `json:"count"`
	FrequencyMHz *float64 `json:"frequency_mhz,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
}

type Memory struct {
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	AvailableGB  float64 `json:"available_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

type Swap struct {
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

type Disk struct {
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	FreeGB       float64 `json:"free_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

type Network struct {
	SentGB      float64 `json:"bytes_sent_gb"`
	RecvGB      float64 `json:"bytes_recv_gb"`
	PacketsSent uint64  `json:"packets_sent"`
	PacketsRecv uint64  `json:"packets_recv"`
}

type System struct {
	UptimeSeconds uint64 `json:"uptime_seconds"`
	ProcessCount  int    `json:"process_count"`
}

// Stats is one host snapshot.
type Stats struct {
	CPU     *CPU     `json:"cpu,omitempty"`
	Memory  *Memory  `json:"memory,omitempty"`
	Swap    *Swap    `json:"swap,omitempty"`
	Disk    *Disk    `json:"disk,omitempty"`
	Network *Network `json:"network,omitempty"`
	System  *System  `json:"system,omitempty"`
}

// Empty reports whether every reading failed.
func (s Stats) Empty() bool {
	return s.CPU == nil && s.Memory == nil && s.Swap == nil &&
		s.Disk == nil && s.Network == nil && s.System == nil
}

// Collector samples the host.
type Collector struct {
	// Sample is the CPU measurement window.
	Sample time.Duration
	// DiskPath is the filesystem reported under Disk.
	DiskPath string
}

// NewCollector returns a collector with a one second CPU window on "/".
func NewCollector() *Collector {
	return &Collector{Sample: time.Second, DiskPath: "/"}
}

// Snapshot takes every reading.
func (c *Collector) Snapshot(ctx context.Context) Stats {
	var s Stats

	if pct, err := cpu.PercentWithContext(ctx, c.Sample, false); err == nil && len(pct) > 0 {
		s.CPU = &CPU{UsagePercent: pct[0]}
		if n, err := cpu.CountsWithContext(ctx, true); err == nil {
			s.CPU.Count = n
		}
		if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 && infos[0].Mhz > 0 {
			mhz := infos[0].Mhz
			s.CPU.FrequencyMHz = &mhz
		}
		s.CPU.TemperatureC = c.temperature(ctx)
	} else {
		log.Debug().Err(err).Msg("CPU stats unavailable")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.Memory = &Memory{
			TotalGB:      float64(vm.Total) / gib,
			UsedGB:       float64(vm.Used) / gib,
			AvailableGB:  float64(vm.Available) / gib,
			UsagePercent: vm.UsedPercent,
		}
	} else {
		log.Debug().Err(err).Msg("Memory stats unavailable")
	}

	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		s.Swap = &Swap{
			TotalGB:      float64(sw.Total) / gib,
			UsedGB:       float64(sw.Used) / gib,
			UsagePercent: sw.UsedPercent,
		}
	}

	if du, err := disk.UsageWithContext(ctx, c.DiskPath); err == nil {
		s.Disk = &Disk{
			TotalGB:      float64(du.Total) / gib,
			UsedGB:       float64(du.Used) / gib,
			FreeGB:       float64(du.Free) / gib,
			UsagePercent: du.UsedPercent,
		}
	} else {
		log.Debug().Err(err).Str("path", c.DiskPath).Msg("Disk stats unavailable")
	}

	if io, err := net.IOCountersWithContext(ctx, false); err == nil && len(io) > 0 {
		s.Network = &Network{
			SentGB:      float64(io[0].BytesSent) / gib,
			RecvGB:      float64(io[0].BytesRecv) / gib,
			PacketsSent: io[0].PacketsSent,
			PacketsRecv: io[0].PacketsRecv,
		}
	}

	if up, err := host.UptimeWithContext(ctx); err == nil {
		s.System = &System{UptimeSeconds: up}
		if pids, err := process.PidsWithContext(ctx); err == nil {
			s.System.ProcessCount = len(pids)
		}
	}

	return s
}

// Quick samples only CPU, memory and temperature.
func (c *Collector) Quick(ctx context.Context) Stats {
	var s Stats
	if pct, err := cpu.PercentWithContext(ctx, c.Sample/2, false); err == nil && len(pct) > 0 {
		s.CPU = &CPU{UsagePercent: pct[0], TemperatureC: c.temperature(ctx)}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.Memory = &Memory{UsagePercent: vm.UsedPercent}
	}
	return s
}

func (c *Collector) temperature(ctx context.Context) *float64 {
	// Partial reads return both readings and an error.
	temps, err := sensors.TemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err != nil {
			log.Debug().Err(err).Msg("Could not read temperature")
		}
		return nil
	}
	return PickTemperature(temps)
}

// PickTemperature averages the coretemp sensors, else takes cpu_thermal, else
// the first reading. Returns nil when there are no readings.
func PickTemperature(temps []sensors.TemperatureStat) *float64 {
	var sum float64
	var n int
	for _, t := range temps {
		if strings.HasPrefix(t.SensorKey, "coretemp") {
			sum += t.Temperature
			n++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		return &avg
	}

	for _, t := range temps {
		if strings.HasPrefix(t.SensorKey, "cpu_thermal") {
			v := t.Temperature
			return &v
		}
	}

	if len(temps) > 0 {
		v := temps[0].Temperature
		return &v
	}
	return nil
}
