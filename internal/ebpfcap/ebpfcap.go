// Package ebpfcap probes host capabilities relevant to the metric
// source's primary/fallback choice: BTF availability, kernel version,
// and whether cilium/ebpf can load programs on this host at all. It
// is surfaced by the `sentinel capabilities` command, not by the core
// pipeline itself (§9: metric source selection is a construction-time
// concern, external to the Aggregator/Trigger Engine).
package ebpfcap

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cilium/ebpf/rlimit"
)

const (
	btfVmlinuxPath = "/sys/kernel/btf/vmlinux"
	procVersion    = "/proc/version"
)

// Report summarizes what this host can support.
type Report struct {
	BTFAvailable    bool
	KernelVersion   string
	CanLoadPrograms bool
	Notes           []string
}

// Detect runs every probe and returns a Report. It never returns an
// error: each probe degrades to a negative finding plus a note.
func Detect() Report {
	var r Report

	if _, err := os.Stat(btfVmlinuxPath); err == nil {
		r.BTFAvailable = true
	} else {
		r.Notes = append(r.Notes, fmt.Sprintf("BTF not found at %s: %v", btfVmlinuxPath, err))
	}

	if v, err := readKernelVersion(procVersion); err == nil {
		r.KernelVersion = v
	} else {
		r.Notes = append(r.Notes, fmt.Sprintf("could not read %s: %v", procVersion, err))
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		r.Notes = append(r.Notes, fmt.Sprintf("RemoveMemlock failed: %v", err))
	} else {
		r.CanLoadPrograms = true
	}

	return r
}

func readKernelVersion(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", fmt.Errorf("empty %s", path)
	}
	line := scanner.Text()
	fields := strings.Fields(line)
	if len(fields) >= 3 {
		return fields[2], nil
	}
	return line, nil
}

// Format renders a Report for human consumption by the CLI.
func Format(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "kernel version: %s\n", orUnknown(r.KernelVersion))
	fmt.Fprintf(&b, "BTF available:  %t\n", r.BTFAvailable)
	fmt.Fprintf(&b, "can load eBPF programs: %t\n", r.CanLoadPrograms)
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "note: %s\n", n)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
