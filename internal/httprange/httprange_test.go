package httprange

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	const size = 1000

	tests := []struct {
		name   string
		header string
		want   Result
	}{
		{name: "absent", header: "", want: Result{Kind: NoRange}},
		{name: "whitespace only", header: "   ", want: Result{Kind: NoRange}},
		{name: "closed range", header: "bytes=100-199", want: Result{Kind: Satisfiable, Start: 100, End: 199}},
		{name: "open ended", header: "bytes=900-", want: Result{Kind: Satisfiable, Start: 900, End: 999}},
		{name: "first byte", header: "bytes=0-0", want: Result{Kind: Satisfiable, Start: 0, End: 0}},
		{name: "end clamped", header: "bytes=500-5000", want: Result{Kind: Satisfiable, Start: 500, End: 999}},
		{name: "unit case insensitive", header: "Bytes=1-2", want: Result{Kind: Satisfiable, Start: 1, End: 2}},
		{name: "start at size", header: "bytes=1000-", want: Result{Kind: Unsatisfiable}},
		{name: "start past size", header: "bytes=2000-2100", want: Result{Kind: Unsatisfiable}},
		{name: "start after end", header: "bytes=200-100", want: Result{Kind: Unsatisfiable}},
		{name: "suffix form", header: "bytes=-100", want: Result{Kind: Unsatisfiable}},
		{name: "multiple ranges", header: "bytes=0-1,5-9", want: Result{Kind: Unsatisfiable}},
		{name: "wrong unit", header: "items=0-1", want: Result{Kind: Unsatisfiable}},
		{name: "no dash", header: "bytes=100", want: Result{Kind: Unsatisfiable}},
		{name: "negative start", header: "bytes=-1-5", want: Result{Kind: Unsatisfiable}},
		{name: "non numeric", header: "bytes=a-b", want: Result{Kind: Unsatisfiable}},
		{name: "signed end", header: "bytes=1-+5", want: Result{Kind: Unsatisfiable}},
		{name: "overflow", header: "bytes=99999999999999999999-", want: Result{Kind: Unsatisfiable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.header, size))
		})
	}
}

func TestParse_ValidIntervalsUnchanged(t *testing.T) {
	sizes := []int64{1, 2, 7, 1000, 1 << 40}
	for _, size := range sizes {
		points := []int64{0, size / 3, size / 2, size - 1}
		for _, start := range points {
			for _, end := range points {
				if start > end {
					continue
				}
				got := Parse(fmt.Sprintf("bytes=%d-%d", start, end), size)
				assert.Equal(t, Result{Kind: Satisfiable, Start: start, End: end}, got, "size=%d start=%d end=%d", size, start, end)
			}
		}
	}
}

func TestParse_StartBeyondSize(t *testing.T) {
	for _, size := range []int64{0, 1, 1000} {
		for _, start := range []int64{size, size + 1, size * 10, size + 1<<20} {
			got := Parse(fmt.Sprintf("bytes=%d-", start), size)
			assert.Equal(t, Unsatisfiable, got.Kind, "size=%d start=%d", size, start)
		}
	}
}

func TestParse_NoHeaderAnySize(t *testing.T) {
	for _, size := range []int64{0, 1, 1000, -1} {
		assert.Equal(t, NoRange, Parse("", size).Kind)
	}
}

func TestResultHelpers(t *testing.T) {
	r := Parse("bytes=100-199", 1000)
	assert.Equal(t, int64(100), r.Length())
	assert.Equal(t, "bytes 100-199/1000", r.ContentRange(1000))
	assert.Equal(t, "bytes */1000", UnsatisfiedRange(1000))
	assert.Equal(t, int64(0), Result{Kind: NoRange}.Length())
	assert.Equal(t, "satisfiable", Satisfiable.String())
}
