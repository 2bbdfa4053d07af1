// Package storage holds the blob stores a cart can be persisted to. Every
// store keeps one opaque string per key and is safe for concurrent use.
package storage

import "errors"

var ErrEmptyKey = errors.New("storage key is required")
