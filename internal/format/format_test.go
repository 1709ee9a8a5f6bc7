package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBps(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"zero", 0, "0 bit/s"},
		{"bits_max", 1024, "1024 bit/s"},
		{"one_and_half_k", 1536, "1.5 kbit/s"},
		{"two_decimals", 1024 + 256, "1.25 kbit/s"},
		{"rounded", 1000 * 1024 / 3, "333.33 kbit/s"},
		{"one_m", 1024*1024 + 1, "1.00 Mbit/s"},
		{"ten_m", 10 * 1024 * 1024 * 1.5, "15 Mbit/s"},
		{"one_g", 1024*1024*1024 + 1, "1.00 Gbit/s"},
		{"four_g", 4 * 1024 * 1024 * 1024, "4 Gbit/s"},
		{"unknown", -1, "---"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatBps(tc.input))
		})
	}
}

func TestFormatPps(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"zero", 0, "0 pps"},
		{"small", 12, "12 pps"},
		{"fraction", 1204.3, "1,204.3 pps"},
		{"millions", 12345678, "12,345,678 pps"},
		{"unknown", -5, "---"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatPps(tc.input))
		})
	}
}

func TestFormatRaw(t *testing.T) {
	assert.Equal(t, "8000", FormatRaw(8000))
	assert.Equal(t, "13", FormatRaw(12.6))
	assert.Equal(t, "133", FormatRaw(400.0/3))
}
