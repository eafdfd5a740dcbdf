package sysstats

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestPickTemperature(t *testing.T) {
	tests := []struct {
		name  string
		temps []sensors.TemperatureStat
		want  *float64
	}{
		{
			name: "coretemp averaged",
			temps: []sensors.TemperatureStat{
				{SensorKey: "acpitz", Temperature: 20},
				{SensorKey: "coretemp_core_0", Temperature: 50},
				{SensorKey: "coretemp_core_1", Temperature: 60},
				{SensorKey: "cpu_thermal", Temperature: 90},
			},
			want: ptr(55),
		},
		{
			name: "cpu_thermal when no coretemp",
			temps: []sensors.TemperatureStat{
				{SensorKey: "nvme_composite", Temperature: 38},
				{SensorKey: "cpu_thermal", Temperature: 47.5},
			},
			want: ptr(47.5),
		},
		{
			name:  "first reading otherwise",
			temps: []sensors.TemperatureStat{{SensorKey: "acpitz", Temperature: 27.8}, {SensorKey: "nvme", Temperature: 40}},
			want:  ptr(27.8),
		},
		{name: "none", temps: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickTemperature(tt.temps)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func fullStats() Stats {
	return Stats{
		CPU:    &CPU{UsagePercent: 42.3, Count: 8, FrequencyMHz: ptr(2400), TemperatureC: ptr(72.4)},
		Memory: &Memory{TotalGB: 16, UsedGB: 6.5, AvailableGB: 9.5, UsagePercent: 40.6},
		Swap:   &Swap{TotalGB: 2, UsedGB: 0.1, UsagePercent: 5},
		Disk:   &Disk{TotalGB: 512, UsedGB: 128, FreeGB: 384, UsagePercent: 25},
		Network: &Network{
			SentGB: 1.234, RecvGB: 10.5,
			PacketsSent: 1234567, PacketsRecv: 9876543,
		},
		System: &System{UptimeSeconds: 3 * 86400, ProcessCount: 231},
	}
}

func TestFormat(t *testing.T) {
	out := Format(fullStats())

	assert.Contains(t, out, "*CPU (8 cores)*")
	assert.Contains(t, out, "Usage: 42.3% ████████\n")
	assert.Contains(t, out, "Frequency: 2400 MHz")
	assert.Contains(t, out, "Temperature: 72.4°C 🔥")
	assert.Contains(t, out, "Usage: 6.5GB / 16.0GB (40.6%)")
	assert.Contains(t, out, "Available: 9.5GB")
	assert.Contains(t, out, "Free: 384.0GB")
	assert.Contains(t, out, "Sent: 1.23GB (1,234,567 packets)")
	assert.Contains(t, out, "Received: 10.50GB (9,876,543 packets)")
	assert.Contains(t, out, "Uptime: 3.0 days")
	assert.Contains(t, out, "Processes: 231")
}

func TestFormat_PartialStats(t *testing.T) {
	s := Stats{
		CPU:    &CPU{UsagePercent: 3, Count: 2},
		System: &System{UptimeSeconds: 5400},
	}
	out := Format(s)

	assert.Contains(t, out, "*CPU (2 cores)*")
	assert.NotContains(t, out, "Temperature")
	assert.NotContains(t, out, "Frequency")
	assert.NotContains(t, out, "*Memory")
	assert.Contains(t, out, "Uptime: 1.5 hours")
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "❌ Could not retrieve system stats", Format(Stats{}))
}

func TestFormatQuick(t *testing.T) {
	assert.Equal(t, "CPU: 42% | RAM: 41% | Temp: 72°C", FormatQuick(fullStats()))

	s := fullStats()
	s.CPU.TemperatureC = nil
	assert.Equal(t, "CPU: 42% | RAM: 41% | Temp: N/A", FormatQuick(s))

	assert.Equal(t, "Stats unavailable", FormatQuick(Stats{}))
}

func TestCollectorSnapshot(t *testing.T) {
	c := &Collector{Sample: 10 * time.Millisecond, DiskPath: t.TempDir()}
	s := c.Snapshot(context.Background())

	// Probes may fail in a sandbox, but whatever is reported must be sane.
	if s.Memory != nil {
		assert.Greater(t, s.Memory.TotalGB, 0.0)
	}
	if s.Disk != nil {
		assert.GreaterOrEqual(t, s.Disk.UsagePercent, 0.0)
	}
	assert.NotEmpty(t, Format(s))
}
