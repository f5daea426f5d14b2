package cmd

import (
	"fmt"
	"strconv"
	"strings"
)

// parseMemoryMB parses a memory size like "512", "1024M" or "2G" into
// megabytes. Accepted range is 128M to 128G.
func parseMemoryMB(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("memory value cannot be empty")
	}

	unit := byte('M')
	numStr := s
	if last := s[len(s)-1]; last < '0' || last > '9' {
		unit = upperByte(last)
		numStr = s[:len(s)-1]
	}

	num, err := strconv.Atoi(numStr)
	if err != nil || numStr == "" {
		return 0, fmt.Errorf("memory value must be a number followed by an optional unit (M/G)")
	}

	var mb int
	switch unit {
	case 'M':
		mb = num
	case 'G':
		mb = num * 1024
	default:
		return 0, fmt.Errorf("invalid memory unit %q", string(unit))
	}

	if mb < 128 || mb > 131072 {
		return 0, fmt.Errorf("memory must be between 128M and 128G (%d MB)", mb)
	}
	return mb, nil
}

func upperByte(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// parseEnvVars parses repeated --env KEY=VALUE flags into a map.
func parseEnvVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid environment variable %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

// validateVCPUs enforces the 1-32 vCPU range.
func validateVCPUs(vcpus int) error {
	if vcpus < 1 || vcpus > 32 {
		return fmt.Errorf("vcpus must be between 1 and 32")
	}
	return nil
}
