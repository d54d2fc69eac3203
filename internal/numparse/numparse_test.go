package numparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1000000", 1000000, true},
		{"12abc", 12, true},
		{"  42.5", 42.5, true},
		{"2.5e6", 2500000, true},
		{"1e", 1, true},
		{".5", 0.5, true},
		{"8.", 8, true},
		{"-3", -3, true},
		{"", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"abc", 0, false},
		{"1e400", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Float(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTrunc(t *testing.T) {
	n, ok := Trunc("95.7")
	assert.True(t, ok)
	assert.Equal(t, int64(95), n)

	n, ok = Trunc("1e3")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), n)

	_, ok = Trunc("1e30")
	assert.False(t, ok)
}

func TestInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"120", 120, true},
		{"95 min", 95, true},
		{"7th", 7, true},
		{"95.8", 95, true},
		{"1e3", 1, true},
		{" -4", -4, true},
		{"", 0, false},
		{"june", 0, false},
		{".5", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Int(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
