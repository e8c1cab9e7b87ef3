package service

import (
	"strconv"
	"strings"
)

// ParseIDList parses a comma separated list of positive integer ids such
// as "1,2,3". An empty string means "no filter" and returns nil. Any token
// that is not a positive integer is a validation error on field; tokens
// are never silently dropped. Duplicates are removed, order is kept.
func ParseIDList(field, raw string) ([]uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	seen := make(map[uint64]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil || id == 0 {
			return nil, FieldError(field, "Invalid id "+strconv.Quote(p)+": expected a comma separated list of integers.")
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
