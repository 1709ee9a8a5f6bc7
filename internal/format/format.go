package format

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatBps formats a bit rate with 1024-based k/M/G prefixes and as few
// decimals as the value needs (at most two).
// Example: 1536 → "1.5 kbit/s", 1024 → "1024 bit/s".
// Negative values (unknown samples) return "---".
func FormatBps(bps float64) string {
	if bps < 0 {
		return "---"
	}
	const (
		k = 1024
		m = k * 1024
		g = m * 1024
	)
	var letter string
	switch {
	case bps <= k:
	case bps <= m:
		bps, letter = bps/k, "k"
	case bps <= g:
		bps, letter = bps/m, "M"
	default:
		bps, letter = bps/g, "G"
	}
	return trimDecimals(bps) + " " + letter + "bit/s"
}

// FormatPps formats a packet rate with comma-separated thousands.
// Example: 1204.3 → "1,204.3 pps".
func FormatPps(pps float64) string {
	if pps < 0 {
		return "---"
	}
	return formatCommaFloat(pps) + " pps"
}

// FormatRaw formats a rate as a plain integer, rounded to the nearest whole
// unit, the way the stat report shows the exact value next to the scaled one.
func FormatRaw(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func trimDecimals(x float64) string {
	switch {
	case x == float64(int64(x)):
		return fmt.Sprintf("%.f", x)
	case x*10 == float64(int64(x*10)):
		return fmt.Sprintf("%.1f", x)
	}
	return fmt.Sprintf("%.2f", x)
}

// formatCommaFloat formats a float with comma-separated thousands and at most
// one decimal place.
func formatCommaFloat(f float64) string {
	formatted := fmt.Sprintf("%.1f", f)
	formatted = strings.TrimSuffix(formatted, ".0")
	parts := strings.SplitN(formatted, ".", 2)
	intPart := insertCommas(parts[0])
	if len(parts) == 2 {
		return intPart + "." + parts[1]
	}
	return intPart
}

// insertCommas inserts comma separators into a digit string every 3 digits from the right.
func insertCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var buf strings.Builder
	lead := n % 3
	if lead > 0 {
		buf.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(s[i : i+3])
	}
	return buf.String()
}
