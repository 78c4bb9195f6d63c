// Package sizeparse parses the byte-count-with-suffix syntax used by
// the --chunk-size flag and the config file's chunk_size field
// (spec.md §6/§8 property 7): a decimal number followed by an optional
// case-insensitive suffix B|K|M|G|T, each 1024x the previous.
package sizeparse

import (
	"strconv"
	"strings"

	"github.com/guiyumin/aget/internal/aerrors"
)

var suffixShift = map[byte]uint{
	'B': 0,
	'K': 10,
	'M': 20,
	'G': 30,
	'T': 40,
}

// Parse converts a string like "500k" or "2G" into a byte count.
// A bare number with no suffix is bytes. Suffix matching is
// case-insensitive.
func Parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, aerrors.NewArgument(aerrors.ArgInvalidSize, "empty size")
	}

	last := s[len(s)-1]
	upper := last
	if upper >= 'a' && upper <= 'z' {
		upper -= 'a' - 'A'
	}

	numPart := s
	shift, hasSuffix := suffixShift[upper]
	if hasSuffix {
		numPart = s[:len(s)-1]
	}

	n, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, aerrors.NewArgument(aerrors.ArgInvalidSize, "invalid size %q", s)
	}

	return n << shift, nil
}
