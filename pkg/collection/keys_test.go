package collection

import (
	"encoding/json"
	"math"
	"testing"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int", 3, 3, true},
		{"whole float", 3.0, 3, true},
		{"negative float", -2.0, -2, true},
		{"fractional float", 3.5, 0, false},
		{"float above range", 1e19, 0, false},
		{"float below range", -1e19, 0, false},
		{"float at upper bound", 9223372036854775808.0, 0, false},
		{"float at lower bound", -9223372036854775808.0, math.MinInt64, true},
		{"infinity", math.Inf(1), 0, false},
		{"nan", math.NaN(), 0, false},
		{"number", json.Number("42"), 42, true},
		{"string", " 7 ", 7, true},
		{"bad string", "x", 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toInt64(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("toInt64(%v) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseAttributesHugeFloatID(t *testing.T) {
	if _, err := ParseAttributes(map[string]any{"image_id": 1e19}); err == nil {
		t.Error("ParseAttributes() error = nil, want identity violation for an out of range id")
	}
}
