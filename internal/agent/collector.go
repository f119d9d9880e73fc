// Package agent gathers host statistics and ships them to the monitor API.
package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
)

// Pseudo filesystems never worth reporting as disks.
var ignoredFstypes = map[string]bool{
	"tmpfs":    true,
	"devtmpfs": true,
	"overlay":  true,
	"squashfs": true,
	"proc":     true,
	"sysfs":    true,
	"cgroup":   true,
	"cgroup2":  true,
	"autofs":   true,
}

type Collector struct {
	sampler   Sampler
	diskPaths []string
	now       func() time.Time
	log       *logger.Logger
}

// NewCollector builds a collector. diskPaths limits disk reporting to those
// mountpoints; empty means every real partition.
func NewCollector(sampler Sampler, diskPaths []string, log *logger.Logger) *Collector {
	return &Collector{
		sampler:   sampler,
		diskPaths: diskPaths,
		now:       time.Now,
		log:       log,
	}
}

// Collect samples the host once. CPU is mandatory; every other section is
// best effort and left out when its source fails.
func (c *Collector) Collect(ctx context.Context) (*models.MetricPayload, error) {
	ts := c.now().UTC()
	payload := &models.MetricPayload{Timestamp: &ts}

	cpuData, err := c.cpu(ctx)
	if err != nil {
		return nil, err
	}
	payload.Metrics.CPU = cpuData

	if m, err := c.memory(ctx); err != nil {
		c.log.Warn("Memory sample failed: %v", err)
	} else {
		payload.Metrics.Memory = m
	}

	if d, err := c.disks(ctx); err != nil {
		c.log.Warn("Disk sample failed: %v", err)
	} else {
		payload.Metrics.Disks = d
	}

	if io, err := c.diskIO(ctx); err != nil {
		c.log.Warn("Disk IO sample failed: %v", err)
	} else {
		payload.Metrics.DiskIO = io
	}

	if n, err := c.network(ctx); err != nil {
		c.log.Warn("Network sample failed: %v", err)
	} else {
		payload.Metrics.Network = n
	}

	if s, err := c.system(ctx); err != nil {
		c.log.Warn("Host info failed: %v", err)
	} else {
		payload.System = s
	}

	return payload, nil
}

func (c *Collector) cpu(ctx context.Context) (map[string]interface{}, error) {
	total, err := c.sampler.CPUPercent(ctx, false)
	if err != nil || len(total) == 0 {
		return nil, fmt.Errorf("failed to get total cpu percent: %v", err)
	}

	data := map[string]interface{}{
		"percent": round2(total[0]),
	}

	if perCore, err := c.sampler.CPUPercent(ctx, true); err == nil {
		cores := make([]float64, len(perCore))
		for i, p := range perCore {
			cores[i] = round2(p)
		}
		data["per_core"] = cores
	}
	if n, err := c.sampler.CPUCount(ctx); err == nil {
		data["count"] = n
	}
	if avg, err := c.sampler.LoadAvg(ctx); err == nil {
		data["load_avg"] = map[string]interface{}{
			"1min":  round2(avg.Load1),
			"5min":  round2(avg.Load5),
			"15min": round2(avg.Load15),
		}
	}
	return data, nil
}

func (c *Collector) memory(ctx context.Context) (map[string]interface{}, error) {
	vm, err := c.sampler.VirtualMemory(ctx)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"total":     vm.Total,
		"available": vm.Available,
		"used":      vm.Used,
		"free":      vm.Free,
		"percent":   round2(vm.UsedPercent),
	}
	if swap, err := c.sampler.SwapMemory(ctx); err == nil {
		data["swap_total"] = swap.Total
		data["swap_used"] = swap.Used
		data["swap_percent"] = round2(swap.UsedPercent)
	}
	return data, nil
}

func (c *Collector) disks(ctx context.Context) ([]map[string]interface{}, error) {
	paths := c.diskPaths
	devices := make(map[string]string)
	fstypes := make(map[string]string)

	if len(paths) == 0 {
		parts, err := c.sampler.Partitions(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, p := range parts {
			if ignoredFstypes[p.Fstype] || seen[p.Mountpoint] {
				continue
			}
			seen[p.Mountpoint] = true
			paths = append(paths, p.Mountpoint)
			devices[p.Mountpoint] = p.Device
			fstypes[p.Mountpoint] = p.Fstype
		}
		sort.Strings(paths)
	}

	out := make([]map[string]interface{}, 0, len(paths))
	for _, path := range paths {
		u, err := c.sampler.DiskUsage(ctx, path)
		if err != nil {
			c.log.Debug("Skipping %s: %v", path, err)
			continue
		}
		fstype := fstypes[path]
		if fstype == "" {
			fstype = u.Fstype
		}
		out = append(out, map[string]interface{}{
			"mountpoint": path,
			"device":     devices[path],
			"fstype":     fstype,
			"total":      u.Total,
			"used":       u.Used,
			"free":       u.Free,
			"percent":    round2(u.UsedPercent),
		})
	}
	return out, nil
}

func (c *Collector) diskIO(ctx context.Context) (map[string]interface{}, error) {
	counters, err := c.sampler.DiskIO(ctx)
	if err != nil {
		return nil, err
	}
	var readBytes, writeBytes, readCount, writeCount uint64
	for _, v := range counters {
		readBytes += v.ReadBytes
		writeBytes += v.WriteBytes
		readCount += v.ReadCount
		writeCount += v.WriteCount
	}
	return map[string]interface{}{
		"read_bytes":  readBytes,
		"write_bytes": writeBytes,
		"read_count":  readCount,
		"write_count": writeCount,
	}, nil
}

func (c *Collector) network(ctx context.Context) (map[string]interface{}, error) {
	counters, err := c.sampler.NetIO(ctx)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, fmt.Errorf("no network counters")
	}
	n := counters[0]
	return map[string]interface{}{
		"bytes_sent":   n.BytesSent,
		"bytes_recv":   n.BytesRecv,
		"packets_sent": n.PacketsSent,
		"packets_recv": n.PacketsRecv,
		"errin":        n.Errin,
		"errout":       n.Errout,
		"dropin":       n.Dropin,
		"dropout":      n.Dropout,
	}, nil
}

func (c *Collector) system(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.sampler.HostInfo(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"hostname":         info.Hostname,
		"os":               info.OS,
		"platform":         info.Platform,
		"platform_version": info.PlatformVersion,
		"kernel_version":   info.KernelVersion,
		"arch":             info.KernelArch,
		"uptime_seconds":   info.Uptime,
		"boot_time":        info.BootTime,
	}, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
