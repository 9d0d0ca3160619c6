package utils

import (
	"fmt"
	"math"
	"runtime"
)

func GetMemUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	// For info on each, see: https://golang.org/pkg/runtime/#MemStats
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return fmt.Sprintf("Alloc = %v MiB TotalAlloc = %v MiB Sys = %v MiB NumGC = %v",
		bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC)
}

func IsNan(A any) bool {
	switch v := A.(type) {
	case float64:
		return math.IsNaN(v) || math.IsInf(v, 0)
	case []float64:
		for _, f := range v {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return true
			}
		}
	case [][]float64:
		for _, row := range v {
			if IsNan(row) {
				return true
			}
		}
	}
	return false
}

// CheckLength returns an error naming the field when len(v) != n.
func CheckLength(name string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%s has length %d, expected %d", name, len(v), n)
	}
	return nil
}
