package database

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeCategories joins category names for a text column.
func EncodeCategories(categories []string) string {
	return strings.Join(categories, ",")
}

// DecodeCategories splits a stored category column.
func DecodeCategories(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// EncodeCounts serializes run counters to JSON text.
func EncodeCounts(counts map[string]int) (string, error) {
	if len(counts) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return "", fmt.Errorf("could not encode run counters: %w", err)
	}
	return string(data), nil
}

// DecodeCounts parses run counters stored as JSON text.
func DecodeCounts(s string) (map[string]int, error) {
	counts := make(map[string]int)
	if s == "" {
		return counts, nil
	}
	if err := json.Unmarshal([]byte(s), &counts); err != nil {
		return nil, fmt.Errorf("could not decode run counters: %w", err)
	}
	return counts, nil
}
