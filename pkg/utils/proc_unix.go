//go:build !windows
// +build !windows

package utils

import (
	"bytes"
	"os"
	"strconv"
	"syscall"
)

// CPUSeconds returns the user plus system time consumed by this process.
func CPUSeconds() float64 {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return tvSeconds(ru.Utime) + tvSeconds(ru.Stime)
}

func tvSeconds(tv syscall.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

// ResidentMemory returns the resident set size in bytes. It falls back to the
// peak rss reported by getrusage when /proc is unavailable.
func ResidentMemory() uint64 {
	stat, err := os.ReadFile("/proc/self/stat")
	if err == nil {
		fields := bytes.Fields(stat)
		if len(fields) >= 24 {
			pages, err := strconv.ParseUint(string(fields[23]), 10, 64)
			if err == nil {
				return pages * uint64(os.Getpagesize())
			}
		}
	}

	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err == nil {
		// kilobytes on linux
		return uint64(ru.Maxrss) * 1024
	}
	return 0
}
