// Package sysstat samples host CPU, memory and disk throughput for the
// dashboard header.
package sysstat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerMB = 1024 * 1024

// Stats is one host sample.
type Stats struct {
	CPU           float64   `json:"cpu"`    // percent 0-100
	Memory        float64   `json:"memory"` // percent used
	DiskReadMBps  float64   `json:"disk_read_mbps"`
	DiskWriteMBps float64   `json:"disk_write_mbps"`
	At            time.Time `json:"at"`
}

// Valid reports whether the sample was ever taken.
func (s Stats) Valid() bool { return !s.At.IsZero() }

// Sampler produces host samples.
type Sampler interface {
	Sample(ctx context.Context) (Stats, error)
}

type diskTotals struct {
	read, write uint64
}

type sampler struct {
	mu sync.Mutex

	cpuPercent func(ctx context.Context) (float64, error)
	memPercent func(ctx context.Context) (float64, error)
	diskIO     func(ctx context.Context) (diskTotals, error)
	now        func() time.Time

	prev   diskTotals
	prevAt time.Time
}

// NewSampler returns a Sampler backed by gopsutil. Disk rates are computed
// from counter deltas, so the first sample reports zero throughput.
func NewSampler() Sampler {
	return &sampler{
		cpuPercent: hostCPU,
		memPercent: hostMemory,
		diskIO:     hostDisk,
		now:        time.Now,
	}
}

func hostCPU(ctx context.Context) (float64, error) {
	// Zero interval compares against the previous call.
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, errors.New("no cpu samples")
	}
	return pcts[0], nil
}

func hostMemory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func hostDisk(ctx context.Context) (diskTotals, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return diskTotals{}, err
	}
	var t diskTotals
	for _, c := range counters {
		t.read += c.ReadBytes
		t.write += c.WriteBytes
	}
	return t, nil
}

// Sample reads all three sources. Partial failures still return what was
// read together with the joined error.
func (s *sampler) Sample(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{At: s.now()}
	var errs []error

	if v, err := s.cpuPercent(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sample cpu: %w", err))
	} else {
		stats.CPU = v
	}
	if v, err := s.memPercent(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sample memory: %w", err))
	} else {
		stats.Memory = v
	}

	totals, err := s.diskIO(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sample disk: %w", err))
	} else {
		if !s.prevAt.IsZero() {
			if secs := stats.At.Sub(s.prevAt).Seconds(); secs > 0 {
				stats.DiskReadMBps = rate(s.prev.read, totals.read, secs)
				stats.DiskWriteMBps = rate(s.prev.write, totals.write, secs)
			}
		}
		s.prev = totals
		s.prevAt = stats.At
	}

	return stats, errors.Join(errs...)
}

func rate(prev, cur uint64, secs float64) float64 {
	// counters reset on device changes
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / bytesPerMB / secs
}
