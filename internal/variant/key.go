// Package variant provides the variant identity model and per-row extraction.
package variant

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key identifies a variant by chromosome, position, reference and alternate
// allele. All fields are canonical strings so that keys built from parsed
// rows, service responses and the persisted cache compare equal.
type Key struct {
	Chrom string
	Pos   string
	Ref   string
	Alt   string
}

// NewKey normalizes raw identity values of any type into a Key.
// It must be applied to every origin of variant identity.
func NewKey(chrom, pos, ref, alt any) Key {
	return Key{
		Chrom: NormalizeChrom(canonical(chrom)),
		Pos:   canonicalPos(pos),
		Ref:   canonical(ref),
		Alt:   canonical(alt),
	}
}

// Normalize re-applies NewKey to an existing key.
func (k Key) Normalize() Key {
	return NewKey(k.Chrom, k.Pos, k.Ref, k.Alt)
}

// String returns the "chrom-pos-ref-alt" form.
func (k Key) String() string {
	return k.Chrom + "-" + k.Pos + "-" + k.Ref + "-" + k.Alt
}

// ParseKey parses the "chrom-pos-ref-alt" form. The chromosome may carry a
// build prefix; deletions written with "-" alleles are not supported.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("invalid variant %q: want CHROM-POS-REF-ALT", s)
	}
	if _, err := strconv.ParseInt(parts[1], 10, 64); err != nil {
		return Key{}, fmt.Errorf("invalid variant %q: position %q is not an integer", s, parts[1])
	}
	return NewKey(parts[0], parts[1], parts[2], parts[3]), nil
}

// PosInt returns the position as an integer, or 0 if it is not numeric.
func (k Key) PosInt() int64 {
	n, _ := strconv.ParseInt(k.Pos, 10, 64)
	return n
}

// NormalizeChrom strips a leading "chr" prefix, case-insensitively.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// canonical renders a value the way it is spelled in a VCF: integral floats
// lose their fractional part so 12345, 12345.0 and "12345" agree.
func canonical(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := x.Float64(); err == nil {
			return formatFloat(f)
		}
		return x.String()
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// canonicalPos applies the integral-float rule to numeric strings too, so
// "12345.0" agrees with 12345.
func canonicalPos(v any) string {
	s := canonical(v)
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1e15 {
		return s
	}
	return formatFloat(f)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
