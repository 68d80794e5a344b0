// Package httprange translates a single-range HTTP Range header into an inclusive
// byte interval for an object of known size.
package httprange

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a parse result.
type Kind int

const (
	// NoRange means the client asked for the full content.
	NoRange Kind = iota
	// Satisfiable means Start and End describe a valid inclusive interval.
	Satisfiable
	// Unsatisfiable means the caller must answer 416 with a bytes */size hint.
	Unsatisfiable
)

func (k Kind) String() string {
	switch k {
	case NoRange:
		return "no_range"
	case Satisfiable:
		return "satisfiable"
	case Unsatisfiable:
		return "unsatisfiable"
	default:
		return "unknown"
	}
}

const unitPrefix = "bytes="

// Result is the outcome of Parse. Start and End are only meaningful when Kind is
// Satisfiable.
type Result struct {
	Kind  Kind
	Start int64
	End   int64
}

// Length is the number of bytes covered by a satisfiable range.
func (r Result) Length() int64 {
	if r.Kind != Satisfiable {
		return 0
	}
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range value for a partial response.
func (r Result) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedRange renders the Content-Range value sent with a 416 response.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Parse interprets header against an object of the given size. An empty header is
// treated as absent. Only the bytes=<start>-[<end>] form is accepted; suffix ranges,
// multiple ranges and malformed values are all Unsatisfiable.
func Parse(header string, size int64) Result {
	header = strings.TrimSpace(header)
	if header == "" {
		return Result{Kind: NoRange}
	}
	unsat := Result{Kind: Unsatisfiable}

	if len(header) < len(unitPrefix) || !strings.EqualFold(header[:len(unitPrefix)], unitPrefix) {
		return unsat
	}
	rangeSet := strings.TrimSpace(header[len(unitPrefix):])
	if strings.Contains(rangeSet, ",") {
		return unsat
	}

	startStr, endStr, ok := strings.Cut(rangeSet, "-")
	if !ok {
		return unsat
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)
	if startStr == "" {
		return unsat
	}

	start, ok := parseOffset(startStr)
	if !ok || start >= size {
		return unsat
	}

	end := size - 1
	if endStr != "" {
		e, ok := parseOffset(endStr)
		if !ok {
			return unsat
		}
		if e < end {
			end = e
		}
	}
	if start > end {
		return unsat
	}
	return Result{Kind: Satisfiable, Start: start, End: end}
}

// parseOffset accepts only non-negative decimal digits.
func parseOffset(s string) (int64, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
