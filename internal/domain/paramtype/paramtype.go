// Package paramtype implements the parameter-type descriptor grammar
// and validation described in spec.md §4.E: name[(range)] where name is
// one of string, uint, int, ipv4, ipv6, ip, mac.
package paramtype

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
)

// Kind enumerates the parameter type family.
type Kind int

const (
	KindUnknown Kind = iota
	KindString
	KindUint
	KindInt
	KindIPv4
	KindIPv6
	KindIP
	KindMac
)

// Type is a parsed parameter-type descriptor.
type Type struct {
	Kind   Kind
	Min    int64
	Max    int64
	Source string // the original descriptor text, for diagnostics
}

// Parse parses a descriptor like "string(0-255)", "uint(1-100)", "ipv4".
// Invalid names produce KindUnknown, which Validate accepts any value
// for.
func Parse(descriptor string) Type {
	t := Type{Source: descriptor}

	name := descriptor
	rangeText := ""
	if i := strings.IndexByte(descriptor, '('); i >= 0 && strings.HasSuffix(descriptor, ")") {
		name = descriptor[:i]
		rangeText = descriptor[i+1 : len(descriptor)-1]
	}
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "string":
		t.Kind = KindString
		t.Min, t.Max = 0, 255
	case "uint":
		t.Kind = KindUint
		t.Min, t.Max = 0, math.MaxUint32
	case "int":
		t.Kind = KindInt
		t.Min, t.Max = math.MinInt32, math.MaxInt32
	case "ipv4":
		t.Kind = KindIPv4
	case "ipv6":
		t.Kind = KindIPv6
	case "ip":
		t.Kind = KindIP
	case "mac":
		t.Kind = KindMac
	default:
		t.Kind = KindUnknown
		return t
	}

	if rangeText == "" {
		return t
	}

	parts := strings.SplitN(rangeText, "-", 2)
	lo, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return t
	}
	hi := lo
	if len(parts) == 2 {
		if v, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil {
			hi = v
		}
	}
	t.Min, t.Max = lo, hi
	return t
}

// Validate reports whether value conforms to t, filling reason with a
// human-readable diagnostic on failure.
func (t Type) Validate(value string) (ok bool, reason string) {
	switch t.Kind {
	case KindUnknown:
		return true, ""

	case KindString:
		n := int64(len(value))
		if n < t.Min || n > t.Max {
			return false, fmt.Sprintf("string length %d out of range [%d,%d]", n, t.Min, t.Max)
		}
		return true, ""

	case KindUint:
		if value == "" || strings.HasPrefix(value, "-") {
			return false, "expected an unsigned integer"
		}
		for _, r := range value {
			if r < '0' || r > '9' {
				return false, "expected an unsigned integer"
			}
		}
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return false, "integer does not fit in 64 bits"
		}
		if int64(v) < t.Min || v > uint64(t.Max) {
			return false, fmt.Sprintf("value %d out of range [%d,%d]", v, t.Min, t.Max)
		}
		return true, ""

	case KindInt:
		rest := value
		if strings.HasPrefix(rest, "-") {
			rest = rest[1:]
		}
		if rest == "" {
			return false, "expected an integer"
		}
		for _, r := range rest {
			if r < '0' || r > '9' {
				return false, "expected an integer"
			}
		}
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false, "integer does not fit in 64 bits"
		}
		if v < t.Min || v > t.Max {
			return false, fmt.Sprintf("value %d out of range [%d,%d]", v, t.Min, t.Max)
		}
		return true, ""

	case KindIPv4:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() == nil || !strings.Contains(value, ".") {
			return false, "Invalid IPv4 address format"
		}
		return true, ""

	case KindIPv6:
		ip := net.ParseIP(value)
		if ip == nil || ip.To4() != nil {
			return false, "Invalid IPv6 address format"
		}
		return true, ""

	case KindIP:
		if ip := net.ParseIP(value); ip != nil {
			return true, ""
		}
		return false, "Invalid IP address format"

	case KindMac:
		return validateMAC(value)

	default:
		return true, ""
	}
}

func validateMAC(value string) (bool, string) {
	var sep byte
	switch {
	case strings.Contains(value, ":"):
		sep = ':'
	case strings.Contains(value, "-"):
		sep = '-'
	default:
		return false, "MAC address must use ':' or '-' separators"
	}

	octets := strings.Split(value, string(sep))
	if len(octets) != 6 {
		return false, "MAC address must have 6 octets"
	}
	for _, o := range octets {
		if len(o) == 0 || len(o) > 2 {
			return false, "MAC octet must be 1-2 hex digits"
		}
		v, err := strconv.ParseUint(o, 16, 16)
		if err != nil || v > 255 {
			return false, "MAC octet out of range [0,255]"
		}
	}
	return true, ""
}
