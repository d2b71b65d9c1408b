// convert.go: Typed value conversion for configuration properties
//
// Configuration values arrive as strings or loosely typed objects; this
// file converts them into the Go types callers actually want. Conversions
// are permissive where decades of configuration files demand it (boolean
// yes/no/on/off, hex and binary integer literals, color hex strings) and
// strict everywhere else: a value that does not convert produces a coded
// error rather than a zero value.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package dryad

import (
	"fmt"
	"image/color"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Prefixes for non-decimal integer literals, as found in properties and
// XML configuration files.
const (
	hexPrefix = "0x"
	binPrefix = "0b"
)

func conversionError(value interface{}, target string) error {
	return errors.New(ErrCodeConversion, fmt.Sprintf("cannot convert %v (%T) to %s", value, value, target))
}

func wrapConversionError(err error, value interface{}, target string) error {
	return errors.Wrap(err, ErrCodeConversion, fmt.Sprintf("cannot convert %v to %s", value, target))
}

// ToString renders any value as a string. This conversion cannot fail.
func ToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToBool converts a value to a bool. Strings accept true/false, yes/no,
// on/off and 1/0 in any case.
func ToBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return false, conversionError(value, "bool")
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, conversionError(value, "bool")
	}
}

// parseIntString parses a decimal integer string, also accepting the 0x
// hex and 0b binary prefixes.
func parseIntString(s string, bitSize int) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, hexPrefix) {
		return strconv.ParseInt(s[len(hexPrefix):], 16, bitSize)
	}
	if strings.HasPrefix(s, binPrefix) {
		return strconv.ParseInt(s[len(binPrefix):], 2, bitSize)
	}
	return strconv.ParseInt(s, 10, bitSize)
}

// ToInt64 converts a value to an int64.
func ToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > 1<<63-1 {
			return 0, conversionError(value, "int64")
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case string:
		n, err := parseIntString(v, 64)
		if err != nil {
			return 0, wrapConversionError(err, value, "int64")
		}
		return n, nil
	default:
		return 0, conversionError(value, "int64")
	}
}

// ToInt converts a value to an int with range checking.
func ToInt(value interface{}) (int, error) {
	n, err := ToInt64(value)
	if err != nil {
		return 0, conversionError(value, "int")
	}
	if int64(int(n)) != n {
		return 0, conversionError(value, "int")
	}
	return int(n), nil
}

// ToUint64 converts a value to a uint64. Negative values are rejected.
func ToUint64(value interface{}) (uint64, error) {
	switch v := value.(type) {
	case uint64:
		return v, nil
	case uint:
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, conversionError(value, "uint64")
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, conversionError(value, "uint64")
		}
		return uint64(v), nil
	case string:
		s := strings.TrimSpace(v)
		var n uint64
		var err error
		switch {
		case strings.HasPrefix(s, hexPrefix):
			n, err = strconv.ParseUint(s[len(hexPrefix):], 16, 64)
		case strings.HasPrefix(s, binPrefix):
			n, err = strconv.ParseUint(s[len(binPrefix):], 2, 64)
		default:
			n, err = strconv.ParseUint(s, 10, 64)
		}
		if err != nil {
			return 0, wrapConversionError(err, value, "uint64")
		}
		return n, nil
	default:
		return 0, conversionError(value, "uint64")
	}
}

// ToFloat64 converts a value to a float64.
func ToFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, wrapConversionError(err, value, "float64")
		}
		return f, nil
	default:
		return 0, conversionError(value, "float64")
	}
}

// ToDuration converts a value to a time.Duration. Strings use Go duration
// syntax ("1h30m"); bare numbers are nanoseconds.
func ToDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, wrapConversionError(err, value, "time.Duration")
		}
		return d, nil
	case int64:
		return time.Duration(v), nil
	case int:
		return time.Duration(v), nil
	default:
		return 0, conversionError(value, "time.Duration")
	}
}

// ToTime converts a value to a time.Time. Strings are parsed with the
// given layout; an empty layout means RFC 3339.
func ToTime(value interface{}, layout string) (time.Time, error) {
	if layout == "" {
		layout = time.RFC3339
	}
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(layout, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, wrapConversionError(err, value, "time.Time")
		}
		return t, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	default:
		return time.Time{}, conversionError(value, "time.Time")
	}
}

// ToRune converts a value to a single rune. Strings must contain exactly
// one rune.
func ToRune(value interface{}) (rune, error) {
	switch v := value.(type) {
	case rune:
		return v, nil
	case string:
		runes := []rune(v)
		if len(runes) != 1 {
			return 0, conversionError(value, "rune")
		}
		return runes[0], nil
	default:
		return 0, conversionError(value, "rune")
	}
}

// ToBytes converts a value to a byte slice.
func ToBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, conversionError(value, "[]byte")
	}
}

// ToURL converts a value to a parsed URL.
func ToURL(value interface{}) (*url.URL, error) {
	switch v := value.(type) {
	case *url.URL:
		return v, nil
	case string:
		u, err := url.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, wrapConversionError(err, value, "*url.URL")
		}
		return u, nil
	default:
		return nil, conversionError(value, "*url.URL")
	}
}

// ToIP converts a value to an IP address.
func ToIP(value interface{}) (net.IP, error) {
	switch v := value.(type) {
	case net.IP:
		return v, nil
	case string:
		ip := net.ParseIP(strings.TrimSpace(v))
		if ip == nil {
			return nil, conversionError(value, "net.IP")
		}
		return ip, nil
	default:
		return nil, conversionError(value, "net.IP")
	}
}

// ToRegexp converts a value to a compiled regular expression.
func ToRegexp(value interface{}) (*regexp.Regexp, error) {
	switch v := value.(type) {
	case *regexp.Regexp:
		return v, nil
	case string:
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, wrapConversionError(err, value, "*regexp.Regexp")
		}
		return re, nil
	default:
		return nil, conversionError(value, "*regexp.Regexp")
	}
}

// ToRGBA converts a value to a color. String form is RRGGBB with an
// optional AA alpha component and an optional leading '#'; a missing
// alpha means opaque.
func ToRGBA(value interface{}) (color.RGBA, error) {
	switch v := value.(type) {
	case color.RGBA:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimPrefix(s, "#")
		if len(s) != 6 && len(s) != 8 {
			return color.RGBA{}, conversionError(value, "color.RGBA")
		}
		var parts [4]uint8
		parts[3] = 0xFF
		for i := 0; i*2 < len(s); i++ {
			n, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
			if err != nil {
				return color.RGBA{}, wrapConversionError(err, value, "color.RGBA")
			}
			parts[i] = uint8(n)
		}
		return color.RGBA{R: parts[0], G: parts[1], B: parts[2], A: parts[3]}, nil
	default:
		return color.RGBA{}, conversionError(value, "color.RGBA")
	}
}

// ToStringSlice converts a value to a list of strings, splitting through
// the given delimiter handler and flattening nested slices.
func ToStringSlice(value interface{}, handler ListDelimiterHandler) ([]string, error) {
	if handler == nil {
		handler = DisabledDelimiterHandler{}
	}
	elems := splitValue(value, handler)
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = ToString(e)
	}
	return out, nil
}

// ToIntSlice converts a value to a list of ints, splitting through the
// given delimiter handler.
func ToIntSlice(value interface{}, handler ListDelimiterHandler) ([]int, error) {
	if handler == nil {
		handler = DisabledDelimiterHandler{}
	}
	elems := splitValue(value, handler)
	out := make([]int, len(elems))
	for i, e := range elems {
		n, err := ToInt(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
