package transfer

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive byte range.
type Range struct {
	Start, End int64
}

func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ContentRange formats r for a Content-Range header.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange reads a Range header for a resource of size bytes. Several
// ranges are merged into the single range spanning all of them. A missing,
// malformed or non-bytes header yields nil so the full body is served.
func ParseRange(header string, size int64) (*Range, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	unit, spec, ok := strings.Cut(header, "=")
	if !ok || strings.TrimSpace(unit) != "bytes" {
		return nil, nil
	}

	var merged *Range
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, ok, err := parseSpec(part, size)
		if err != nil {
			return nil, nil
		}
		if !ok {
			continue
		}
		if merged == nil {
			merged = &r
			continue
		}
		merged.Start = min(merged.Start, r.Start)
		merged.End = max(merged.End, r.End)
	}
	if merged == nil {
		return nil, ErrRangeNotSatisfiable
	}
	return merged, nil
}

// parseSpec parses one "a-b", "a-" or "-n" spec. ok is false when the spec
// is valid but lies outside the resource.
func parseSpec(spec string, size int64) (Range, bool, error) {
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return Range{}, false, fmt.Errorf("bad range %q", spec)
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return Range{}, false, fmt.Errorf("bad suffix range %q", spec)
		}
		if n == 0 || size == 0 {
			return Range{}, false, nil
		}
		return Range{Start: max(0, size-n), End: size - 1}, true, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return Range{}, false, fmt.Errorf("bad range start %q", spec)
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return Range{}, false, fmt.Errorf("bad range end %q", spec)
		}
	}
	if start >= size {
		return Range{}, false, nil
	}
	return Range{Start: start, End: min(end, size-1)}, true, nil
}
