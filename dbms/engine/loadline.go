package engine

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrInvalidFileFormat = errors.New("engine: invalid load file format")

// ParseLoadLine splits one line of a load file into key and value.
//
// A line is `key , value`: blanks before the key and after the comma are
// skipped, the key is the leading integer, or 0 when the line does not start
// with one, and anything between it and the comma is ignored. The value is
// either quoted with ' or " and ends at the matching quote, or bare and runs
// to the end of the line. An empty value is allowed.
func ParseLoadLine(line string) (int64, string, error) {
	s := strings.TrimLeft(line, " \t")

	digits := 0
	if digits < len(s) && (s[digits] == '-' || s[digits] == '+') {
		digits++
	}
	start := digits
	for digits < len(s) && '0' <= s[digits] && s[digits] <= '9' {
		digits++
	}
	var key int64
	if digits > start {
		var err error
		if key, err = strconv.ParseInt(s[:digits], 10, 64); err != nil {
			return 0, "", errors.Wrapf(ErrInvalidFileFormat, "key %q: %v", s[:digits], err)
		}
	}

	comma := strings.IndexByte(s[digits:], ',')
	if comma < 0 {
		return 0, "", errors.Wrapf(ErrInvalidFileFormat, "no comma in %q", line)
	}
	rest := strings.TrimLeft(s[digits+comma+1:], " \t")
	rest = strings.TrimSuffix(rest, "\r")
	if rest == "" {
		return key, "", nil
	}

	if q := rest[0]; q == '\'' || q == '"' {
		rest = rest[1:]
		if end := strings.IndexByte(rest, q); end >= 0 {
			rest = rest[:end]
		}
	}
	return key, rest, nil
}
