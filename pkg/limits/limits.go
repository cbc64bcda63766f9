// Package limits translates human-readable resource limit strings into the
// numeric values the container runtime expects, and provides the named
// resource tiers sandboxes are provisioned under.
package limits

import (
	"strconv"
	"strings"
)

// Resource tiers, smallest to largest. Unknown tier names resolve to the
// default tier rather than failing, so a stale tier name on a stored
// sandbox config can never block provisioning.
const (
	TierStarter = "starter"
	TierBuilder = "builder"
	TierCreator = "creator"
	TierPower   = "power"

	DefaultTier = TierStarter
)

// Resources holds limit values in their human-readable string form
// ("2g", "1.5", "512"). Empty fields mean "use the tier default".
type Resources struct {
	CPUs       string
	Memory     string
	MemorySwap string
	PIDs       string
	Disk       string
}

// Resolved holds runtime-native limit values. A zero field means
// "no limit": malformed or absent inputs degrade to unlimited instead of
// erroring, so a bad limit string can never prevent a sandbox from running.
type Resolved struct {
	NanoCPUs        int64
	MemoryBytes     int64
	MemorySwapBytes int64
	PIDs            int64
	DiskBytes       int64
}

var tiers = map[string]Resources{
	TierStarter: {CPUs: "1", Memory: "2g", MemorySwap: "2g", PIDs: "256", Disk: "5g"},
	TierBuilder: {CPUs: "2", Memory: "4g", MemorySwap: "4g", PIDs: "512", Disk: "10g"},
	TierCreator: {CPUs: "4", Memory: "8g", MemorySwap: "8g", PIDs: "1024", Disk: "20g"},
	TierPower:   {CPUs: "8", Memory: "16g", MemorySwap: "16g", PIDs: "2048", Disk: "40g"},
}

// Tiers lists the known tier names, smallest to largest.
func Tiers() []string {
	return []string{TierStarter, TierBuilder, TierCreator, TierPower}
}

// ForTier returns the default limit strings for a tier. Unknown names fall
// back to the default tier.
func ForTier(name string) Resources {
	if r, ok := tiers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return r
	}
	return tiers[DefaultTier]
}

// Resolve layers caller overrides on top of the tier defaults and parses
// the effective strings into runtime-native values. The merge happens once
// per call; neither the tier table nor the inputs are mutated.
func Resolve(tier string, overrides Resources) Resolved {
	eff := ForTier(tier)
	if overrides.CPUs != "" {
		eff.CPUs = overrides.CPUs
	}
	if overrides.Memory != "" {
		eff.Memory = overrides.Memory
	}
	if overrides.MemorySwap != "" {
		eff.MemorySwap = overrides.MemorySwap
	}
	if overrides.PIDs != "" {
		eff.PIDs = overrides.PIDs
	}
	if overrides.Disk != "" {
		eff.Disk = overrides.Disk
	}

	var r Resolved
	if n, ok := ParseCPUs(eff.CPUs); ok {
		r.NanoCPUs = n
	}
	if n, ok := ParseMemory(eff.Memory); ok {
		r.MemoryBytes = n
	}
	if n, ok := ParseMemory(eff.MemorySwap); ok {
		r.MemorySwapBytes = n
	}
	if n, ok := parseCount(eff.PIDs); ok {
		r.PIDs = n
	}
	if n, ok := ParseMemory(eff.Disk); ok {
		r.DiskBytes = n
	}
	// The runtime rejects swap below the memory limit.
	if r.MemorySwapBytes != 0 && r.MemorySwapBytes < r.MemoryBytes {
		r.MemorySwapBytes = r.MemoryBytes
	}
	return r
}

// ParseMemory converts a size string such as "512m", "2g", "1.5gb" or a
// bare byte count into bytes. Suffixes k, m and g (optionally followed by
// "b") use 1024 multipliers. The second return value is false when the
// input does not describe a positive size; callers treat that as "no
// limit".
func ParseMemory(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	mult := int64(1)
	s = strings.TrimSuffix(s, "b")
	if s == "" {
		return 0, false
	}
	switch s[len(s)-1] {
	case 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	n := int64(v * float64(mult))
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// ParseCPUs converts a CPU count such as "1.5" into nano-CPUs (one CPU is
// 1e9), truncating fractional nanos. The second return value is false when
// the input does not describe a positive count.
func ParseCPUs(s string) (int64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return int64(v * 1e9), true
}

func parseCount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
