// Package strings provides string manipulation utilities.
package strings

import (
	"strings"

	"github.com/samber/lo"
)

// DedupeReport summarises a deduplication pass.
type DedupeReport struct {
	Total   int
	Unique  int
	Removed int
}

// DedupeAndTrim trims every line, drops the blank ones and keeps the first
// occurrence of each remaining value in order.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	trimmed := lo.FilterMap(values, func(v string, _ int) (string, bool) {
		t := strings.TrimSpace(v)
		return t, t != ""
	})
	return lo.Uniq(trimmed)
}

// DedupeOrdered keeps the first occurrence of every value, in order, and
// reports how many occurrences were dropped. Values are compared verbatim.
func DedupeOrdered(values []string) ([]string, DedupeReport) {
	unique := lo.Uniq(values)
	return unique, DedupeReport{
		Total:   len(values),
		Unique:  len(unique),
		Removed: len(values) - len(unique),
	}
}
