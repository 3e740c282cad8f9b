// Package utils holds small query-string helpers shared by the HTTP layer.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is blank or not a
// number. Surrounding spaces are ignored.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Page reads a zero-based page index and a page size from raw query values.
// Negative pages become 0; sizes outside [1, maxSize] fall back to defSize
// or are capped at maxSize.
func Page(pageRaw, sizeRaw string, defSize, maxSize int) (page, size int) {
	page = AtoiDefault(pageRaw, 0)
	if page < 0 {
		page = 0
	}
	size = AtoiDefault(sizeRaw, defSize)
	if size <= 0 {
		size = defSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return page, size
}
