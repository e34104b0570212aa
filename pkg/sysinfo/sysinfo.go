// Package sysinfo collects the host inventory attached to build telemetry.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is the host inventory
type Info struct {
	OS        OS        `json:"os" yaml:"os"`
	Processor Processor `json:"processor" yaml:"processor"`
	Memory    Memory    `json:"memory" yaml:"memory"`
	Runtime   Runtime   `json:"runtime" yaml:"runtime"`
}

// OS describes the operating system
type OS struct {
	Arch    string `json:"arch" yaml:"arch"`
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Build   string `json:"build" yaml:"build"` // kernel version
}

// Processor describes the first CPU package
type Processor struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Logical   int    `json:"logicalProcessors" yaml:"logicalProcessors"`
	Physical  int    `json:"physicalProcessors" yaml:"physicalProcessors"`
	Frequency int64  `json:"frequency" yaml:"frequency"` // Hz
}

// Memory is a total/available pair in bytes
type Memory struct {
	Total     uint64 `json:"total" yaml:"total"`
	Available uint64 `json:"available" yaml:"available"`
}

// Runtime describes the profiler process itself
type Runtime struct {
	Version string        `json:"version" yaml:"version"`
	Memory  RuntimeMemory `json:"memory" yaml:"memory"`
}

// RuntimeMemory is the process memory view in bytes
type RuntimeMemory struct {
	Total     uint64 `json:"total" yaml:"total"`
	Available uint64 `json:"available" yaml:"available"`
	Max       int64  `json:"max" yaml:"max"` // soft memory limit, -1 when unlimited
}

// Collect gathers the inventory. Whatever could be read is returned even
// when some probes fail; the error lists the failed probes.
func Collect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      OS{Arch: runtime.GOARCH, Name: runtime.GOOS},
		Runtime: collectRuntime(),
	}
	var errs []error

	if h, err := host.InfoWithContext(ctx); err == nil {
		if h.Platform != "" {
			info.OS.Name = h.Platform
		}
		info.OS.Version = h.PlatformVersion
		info.OS.Build = h.KernelVersion
		if h.KernelArch != "" {
			info.OS.Arch = h.KernelArch
		}
	} else {
		errs = append(errs, fmt.Errorf("host: %w", err))
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		c := cpus[0]
		info.Processor.ID = fmt.Sprintf("%s Family %s Model %s Stepping %d", c.VendorID, c.Family, c.Model, c.Stepping)
		info.Processor.Name = c.ModelName
		info.Processor.Frequency = int64(math.Round(c.Mhz * 1e6))
	} else if err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.Processor.Logical = n
	} else {
		info.Processor.Logical = runtime.NumCPU()
		errs = append(errs, fmt.Errorf("logical cpus: %w", err))
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.Processor.Physical = n
	} else {
		errs = append(errs, fmt.Errorf("physical cpus: %w", err))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.Memory = Memory{Total: vm.Total, Available: vm.Available}
	} else {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}

	return info, errors.Join(errs...)
}

func collectRuntime() Runtime {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	limit := debug.SetMemoryLimit(-1)
	if limit == math.MaxInt64 {
		limit = -1
	}
	return Runtime{
		Version: runtime.Version(),
		Memory: RuntimeMemory{
			Total:     ms.Sys,
			Available: ms.HeapIdle - ms.HeapReleased,
			Max:       limit,
		},
	}
}
