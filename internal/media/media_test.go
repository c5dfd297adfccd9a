package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Validate(t *testing.T) {
	tests := []struct {
		name  string
		r     Range
		valid bool
	}{
		{"ok", Range{Start: 0, End: 10}, true},
		{"fractional", Range{Start: 1.5, End: 1.75}, true},
		{"inverted", Range{Start: 10, End: 5}, false},
		{"empty", Range{Start: 5, End: 5}, false},
		{"negative start", Range{Start: -1, End: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, KindInvalidRange, KindOf(err))
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestValidateRanges_ReportsOrdinal(t *testing.T) {
	err := ValidateRanges([]Range{{0, 10}, {20, 15}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "range #2")

	assert.Error(t, ValidateRanges(nil))
}

func TestRange_UnmarshalJSON(t *testing.T) {
	var r Range
	require.NoError(t, json.Unmarshal([]byte(`[12, 30.5]`), &r))
	assert.Equal(t, Range{Start: 12, End: 30.5}, r)

	require.NoError(t, json.Unmarshal([]byte(`{"start": 1, "end": 2}`), &r))
	assert.Equal(t, Range{Start: 1, End: 2}, r)

	bad := []string{`[1]`, `[1, 2, 3]`, `["a", 2]`, `{"start": 1}`, `"1-2"`, `{"start": 1, "end": 2, "x": 3}`}
	for _, in := range bad {
		err := json.Unmarshal([]byte(in), &r)
		require.Error(t, err, in)
		assert.Equal(t, KindInvalidRange, KindOf(err), in)
	}
}

func TestKeepSegments(t *testing.T) {
	keeps, err := KeepSegments([]Range{{10, 20}}, 30)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 10}, {20, 30}}, keeps)

	// overlapping and unsorted cuts, one running past the end
	keeps, err = KeepSegments([]Range{{50, 70}, {5, 10}, {8, 12}}, 60)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 5}, {12, 50}}, keeps)

	keeps, err = KeepSegments([]Range{{0, 10}}, 30)
	require.NoError(t, err)
	assert.Equal(t, []Range{{10, 30}}, keeps)
	assert.Equal(t, 20.0, TotalDuration(keeps))

	_, err = KeepSegments([]Range{{0, 40}}, 30)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = KeepSegments([]Range{{0, 10}}, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
	assert.Equal(t, KindCancelled, KindOf(fmt.Errorf("outer: %w", Cancelled("stop"))))

	wrapped := Classify(errors.New("disk"), "write %s", "x")
	assert.Equal(t, KindUnexpected, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrUnexpected)

	orig := FormatMismatch("b.mkv")
	assert.Same(t, orig, Classify(orig, "ignored"))
}

func TestSameExt(t *testing.T) {
	_, ok := SameExt([]string{"a.mp4", "B.MP4"})
	assert.True(t, ok)

	bad, ok := SameExt([]string{"a.mp4", "b.mkv"})
	assert.False(t, ok)
	assert.Equal(t, "b.mkv", bad)

	assert.Equal(t, Asset{Path: "/g/video.MOV", Ext: ".mov"}, NewAsset("/g/video.MOV"))
}
