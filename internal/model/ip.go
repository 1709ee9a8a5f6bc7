package model

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
)

// ParseIPv4 accepts dotted-quad notation or an unsigned 32-bit integer and
// returns the address as stored in sample_tbl.ip.
func ParseIPv4(s string) (uint32, error) {
	if isDigits(s) {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric IPv4 address %q: %w", s, err)
		}
		return uint32(v), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("invalid IPv4 address %q: %w", s, err)
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("%q is not an IPv4 address", s)
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), nil
}

// FormatIPv4 renders a stored address in dotted-quad notation.
func FormatIPv4(ip uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b).String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
