package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SystemStats is a point-in-time host reading. Negative values mean the
// reading is unavailable.
type SystemStats struct {
	CPUPercent     float64
	MemoryPercent  float64
	BatteryPercent float64
}

type StatsSource interface {
	Stats(ctx context.Context) (SystemStats, error)
}

type SystemInfoTool struct {
	now   func() time.Time
	stats StatsSource
}

func NewSystemInfoTool(stats StatsSource) *SystemInfoTool {
	if stats == nil {
		stats = ProcStats{Root: "/"}
	}
	return &SystemInfoTool{now: time.Now, stats: stats}
}

func (t *SystemInfoTool) Name() string { return "get_system_info" }

func (t *SystemInfoTool) Description() string {
	return "Get current time, date, or system stats (CPU, RAM, Battery)"
}

func (t *SystemInfoTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"category": stringProperty("What to report.", "time", "date", "stats"),
	}, "category")
}

func (t *SystemInfoTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	switch strings.ToLower(stringArg(args, "category")) {
	case "time":
		return NewToolResult(t.now().Format("15:04"))
	case "date":
		return NewToolResult(t.now().Format("Monday, January 02, 2006"))
	default:
		s, err := t.stats.Stats(ctx)
		if err != nil {
			return ErrorResult(fmt.Sprintf("System stats unavailable: %v", err)).WithError(err)
		}
		return NewToolResult(fmt.Sprintf("CPU: %s, RAM: %s, Battery: %s",
			percent(s.CPUPercent), percent(s.MemoryPercent), percent(s.BatteryPercent)))
	}
}

func percent(v float64) string {
	if v < 0 {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// ProcStats reads CPU, memory and battery from procfs and sysfs under Root.
type ProcStats struct {
	Root   string
	Sample time.Duration
}

func (p ProcStats) path(parts ...string) string {
	return filepath.Join(append([]string{p.Root}, parts...)...)
}

func (p ProcStats) Stats(ctx context.Context) (SystemStats, error) {
	out := SystemStats{CPUPercent: -1, MemoryPercent: -1, BatteryPercent: -1}

	mem, memErr := p.memoryPercent()
	if memErr == nil {
		out.MemoryPercent = mem
	}
	cpu, cpuErr := p.cpuPercent(ctx)
	if cpuErr == nil {
		out.CPUPercent = cpu
	}
	if bat, err := p.batteryPercent(); err == nil {
		out.BatteryPercent = bat
	}
	if memErr != nil && cpuErr != nil {
		return out, errors.Join(memErr, cpuErr)
	}
	return out, nil
}

func (p ProcStats) memoryPercent() (float64, error) {
	f, err := os.Open(p.path("proc", "meminfo"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total, available float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if total <= 0 {
		return 0, errors.New("meminfo: MemTotal missing")
	}
	return (total - available) / total * 100, nil
}

func (p ProcStats) cpuSample() (idle, total float64, err error) {
	f, err := os.Open(p.path("proc", "stat"))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return 0, 0, errors.New("stat: empty")
	}
	fields := strings.Fields(sc.Text())
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, errors.New("stat: unexpected format")
	}
	for i, raw := range fields[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, 0, err
		}
		total += v
		// idle and iowait
		if i == 3 || i == 4 {
			idle += v
		}
	}
	return idle, total, nil
}

func (p ProcStats) cpuPercent(ctx context.Context) (float64, error) {
	idle1, total1, err := p.cpuSample()
	if err != nil {
		return 0, err
	}
	wait := p.Sample
	if wait <= 0 {
		wait = 200 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(wait):
	}
	idle2, total2, err := p.cpuSample()
	if err != nil {
		return 0, err
	}
	dt := total2 - total1
	if dt <= 0 {
		return 0, nil
	}
	return (1 - (idle2-idle1)/dt) * 100, nil
}

func (p ProcStats) batteryPercent() (float64, error) {
	matches, err := filepath.Glob(p.path("sys", "class", "power_supply", "BAT*", "capacity"))
	if err != nil || len(matches) == 0 {
		return 0, errors.New("no battery")
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
}
