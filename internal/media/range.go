// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MatchCut - 比赛录像剪辑与转码工具

package media

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
)

// Range is a [Start, End) span of a video in seconds
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// Validate checks start >= 0, end > start and that both bounds are finite
func (r Range) Validate() error {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) || math.IsInf(r.Start, 0) || math.IsInf(r.End, 0) {
		return InvalidRange("non-finite bound in [%v, %v]", r.Start, r.End)
	}
	if r.Start < 0 {
		return InvalidRange("negative start %v", r.Start)
	}
	if r.End <= r.Start {
		return InvalidRange("end %v not after start %v", r.End, r.Start)
	}
	return nil
}

// ValidateRanges validates every range. An empty list is invalid.
func ValidateRanges(ranges []Range) error {
	if len(ranges) == 0 {
		return InvalidRange("no ranges given")
	}
	for i, r := range ranges {
		if err := r.Validate(); err != nil {
			return InvalidRange("range #%d: %s", i+1, err.(*Error).Body)
		}
	}
	return nil
}

// UnmarshalJSON accepts [start, end] or {"start": s, "end": e}. Both
// bounds must be present and numeric.
func (r *Range) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return InvalidRange("empty range")
	}

	switch data[0] {
	case '[':
		var bounds []json.Number
		if err := decodeStrict(data, &bounds); err != nil {
			return InvalidRange("malformed range %s", data)
		}
		if len(bounds) != 2 {
			return InvalidRange("range needs exactly two bounds, got %d", len(bounds))
		}
		start, err1 := bounds[0].Float64()
		end, err2 := bounds[1].Float64()
		if err1 != nil || err2 != nil {
			return InvalidRange("non-numeric bound in %s", data)
		}
		r.Start, r.End = start, end
	case '{':
		var obj struct {
			Start *float64 `json:"start"`
			End   *float64 `json:"end"`
		}
		if err := decodeStrict(data, &obj); err != nil {
			return InvalidRange("malformed range %s", data)
		}
		if obj.Start == nil || obj.End == nil {
			return InvalidRange("range needs start and end")
		}
		r.Start, r.End = *obj.Start, *obj.End
	default:
		return InvalidRange("malformed range %s", data)
	}
	return nil
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// KeepSegments returns the complement of cuts within [0, duration], in
// timeline order. Cuts may overlap and extend past the end.
func KeepSegments(cuts []Range, duration float64) ([]Range, error) {
	if err := ValidateRanges(cuts); err != nil {
		return nil, err
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, InvalidRange("unknown video duration %v", duration)
	}

	sorted := make([]Range, len(cuts))
	copy(sorted, cuts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var keeps []Range
	cursor := 0.0
	for _, c := range sorted {
		if c.Start >= duration {
			break
		}
		if c.Start > cursor {
			keeps = append(keeps, Range{Start: cursor, End: c.Start})
		}
		if c.End > cursor {
			cursor = c.End
		}
	}
	if cursor < duration {
		keeps = append(keeps, Range{Start: cursor, End: duration})
	}

	if len(keeps) == 0 {
		return nil, InvalidRange("cuts remove the whole video")
	}
	return keeps, nil
}

// TotalDuration sums the durations of ranges
func TotalDuration(ranges []Range) float64 {
	total := 0.0
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}
