// Package codec parses voucher code strings of the form
// {type}-{value}-{suffix} into structured rights descriptors. Parsing is
// pure and deterministic; the same code string always yields the same
// descriptor.
package codec

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedCode = errors.New("malformed_code")

type Kind string

const (
	KindPass Kind = "pass"
	KindEra  Kind = "era"
)

type ValueKind string

const (
	// ValueKindCount grants a fixed number of uses.
	ValueKindCount ValueKind = "count"
	// ValueKindTime grants unlimited uses within a duration window.
	ValueKindTime ValueKind = "time"
)

// Descriptor is the parsed form of a voucher code. It is derived on demand
// and never persisted; only the entitlement row created from it is.
type Descriptor struct {
	Kind Kind

	// Identifier is the raw type segment: "pass" for pass vouchers, an
	// era identifier (or the generic "era" sentinel) otherwise.
	Identifier string

	ValueKind ValueKind

	// UsesGranted is the count value, or -1 for time vouchers.
	UsesGranted int64

	// Duration is the validity window for time vouchers, zero for counts.
	Duration time.Duration

	// Suffix is everything after the first two segments, hyphens intact.
	Suffix string
}

const unlimitedUses int64 = -1

var (
	countPattern = regexp.MustCompile(`^\d+$`)
	timePattern  = regexp.MustCompile(`^([A-Za-z]+)(\d+)$`)
)

var durationUnits = map[string]time.Duration{
	"day":    24 * time.Hour,
	"days":   24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"weeks":  7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"months": 30 * 24 * time.Hour,
}

// Parse splits a voucher code into its descriptor. It fails with
// ErrMalformedCode when the code has fewer than three hyphen-delimited
// segments or the value segment matches neither a count nor a known
// duration unit.
func Parse(code string) (Descriptor, error) {
	segments := strings.Split(code, "-")
	if len(segments) < 3 {
		return Descriptor{}, ErrMalformedCode
	}

	identifier := segments[0]
	if identifier == "" {
		return Descriptor{}, ErrMalformedCode
	}

	kind := KindEra
	if identifier == string(KindPass) {
		kind = KindPass
	}

	desc := Descriptor{
		Kind:       kind,
		Identifier: identifier,
		Suffix:     strings.Join(segments[2:], "-"),
	}

	value := segments[1]
	switch {
	case countPattern.MatchString(value):
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Descriptor{}, ErrMalformedCode
		}
		desc.ValueKind = ValueKindCount
		desc.UsesGranted = n
	default:
		match := timePattern.FindStringSubmatch(value)
		if match == nil {
			return Descriptor{}, ErrMalformedCode
		}
		unit, ok := durationUnits[strings.ToLower(match[1])]
		if !ok {
			return Descriptor{}, ErrMalformedCode
		}
		n, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil || n <= 0 {
			return Descriptor{}, ErrMalformedCode
		}
		desc.ValueKind = ValueKindTime
		desc.UsesGranted = unlimitedUses
		desc.Duration = time.Duration(n) * unit
	}

	return desc, nil
}

// ValidateFormat reports whether the code parses. It never returns an error.
func ValidateFormat(code string) bool {
	_, err := Parse(code)
	return err == nil
}
