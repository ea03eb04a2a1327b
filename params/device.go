package params

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Device is the explicit placement threaded into batches and the model.
// Only the host CPU is supported; Workers bounds the per-example fan-out.
type Device struct {
	Name    string
	Workers int
}

// CPU returns a single-worker host device.
func CPU() Device { return Device{Name: "cpu", Workers: 1} }

// DetectDevice picks the worker count from the physical core count when
// workers <= 0.
func DetectDevice(workers int) Device {
	if workers <= 0 {
		workers = cpuid.CPU.PhysicalCores
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Device{Name: "cpu", Workers: workers}
}

func (d Device) String() string {
	return fmt.Sprintf("%s(%d workers)", d.Name, d.Workers)
}

// Describe is a one-line summary of the host for startup logs.
func (d Device) Describe() string {
	simd := "generic"
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ):
		simd = "avx512"
	case cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3):
		simd = "avx2"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		simd = "neon"
	}
	return fmt.Sprintf("%s, %d logical cores, %s", cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, simd)
}
