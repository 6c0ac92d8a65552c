// Package store caches raw NFe documents so repeated runs over the same key
// list do not hit the document service again. Every backend returns
// sentinel.ErrNotFound for a missing or expired entry.
package store

import (
	"frota/pkg/platform/sentinel"
)

// ErrNotFound is returned when a document is not cached or has expired.
var ErrNotFound = sentinel.ErrNotFound
