package sysstats

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// bar draws one block per five percent.
func bar(pct float64) string {
	n := int(pct / 5)
	if n < 0 {
		n = 0
	}
	return strings.Repeat("█", n)
}

// Format renders the full Markdown report.
func Format(s Stats) string {
	if s.Empty() {
		return "❌ Could not retrieve system stats"
	}

	var b strings.Builder
	b.WriteString("🖥️ *System Status*\n\n")

	if c := s.CPU; c != nil {
		fmt.Fprintf(&b, "*CPU (%d cores)*\n", c.Count)
		fmt.Fprintf(&b, "Usage: %.1f%% %s\n", c.UsagePercent, bar(c.UsagePercent))
		if c.FrequencyMHz != nil {
			fmt.Fprintf(&b, "Frequency: %.0f MHz\n", *c.FrequencyMHz)
		}
		if c.TemperatureC != nil {
			emoji := "🌡️"
			if *c.TemperatureC > 70 {
				emoji = "🔥"
			}
			fmt.Fprintf(&b, "Temperature: %.1f°C %s\n", *c.TemperatureC, emoji)
		}
		b.WriteString("\n")
	}

	if m := s.Memory; m != nil {
		b.WriteString("*Memory (RAM)*\n")
		fmt.Fprintf(&b, "Usage: %.1fGB / %.1fGB (%.1f%%)\n", m.UsedGB, m.TotalGB, m.UsagePercent)
		fmt.Fprintf(&b, "%s\n", bar(m.UsagePercent))
		fmt.Fprintf(&b, "Available: %.1fGB\n\n", m.AvailableGB)
	}

	if sw := s.Swap; sw != nil && sw.TotalGB > 0 {
		b.WriteString("*Swap*\n")
		fmt.Fprintf(&b, "Usage: %.1fGB / %.1fGB (%.1f%%)\n\n", sw.UsedGB, sw.TotalGB, sw.UsagePercent)
	}

	if d := s.Disk; d != nil {
		b.WriteString("*Disk*\n")
		fmt.Fprintf(&b, "Usage: %.1fGB / %.1fGB (%.1f%%)\n", d.UsedGB, d.TotalGB, d.UsagePercent)
		fmt.Fprintf(&b, "%s\n", bar(d.UsagePercent))
		fmt.Fprintf(&b, "Free: %.1fGB\n\n", d.FreeGB)
	}

	if n := s.Network; n != nil {
		b.WriteString("*Network*\n")
		b.WriteString(printer.Sprintf("Sent: %.2fGB (%d packets)\n", n.SentGB, n.PacketsSent))
		b.WriteString(printer.Sprintf("Received: %.2fGB (%d packets)\n\n", n.RecvGB, n.PacketsRecv))
	}

	if sys := s.System; sys != nil {
		b.WriteString("*System*\n")
		fmt.Fprintf(&b, "Uptime: %s\n", formatUptime(sys))
		fmt.Fprintf(&b, "Processes: %d\n", sys.ProcessCount)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func formatUptime(sys *System) string {
	hours := float64(sys.UptimeSeconds) / 3600
	if hours >= 24 {
		return fmt.Sprintf("%.1f days", hours/24)
	}
	return fmt.Sprintf("%.1f hours", hours)
}

// FormatQuick renders the one-line summary.
func FormatQuick(s Stats) string {
	if s.CPU == nil || s.Memory == nil {
		return "Stats unavailable"
	}
	temp := "N/A"
	if s.CPU.TemperatureC != nil {
		temp = fmt.Sprintf("%.0f°C", *s.CPU.TemperatureC)
	}
	return fmt.Sprintf("CPU: %.0f%% | RAM: %.0f%% | Temp: %s", s.CPU.UsagePercent, s.Memory.UsagePercent, temp)
}
