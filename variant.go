package npa700

import (
	"fmt"
	"strings"
)

// Variant identifies the pressure range of an NPA-700 part. The 5 V / 3.3 V
// (700 / 730) and port options do not change the conversion.
type Variant int

const (
	Variant02WD Variant = iota // 0.5 kPa / 0.07 PSI
	Variant05WD                // 1.25 kPa / 0.18 PSI
	Variant10WD                // 2.49 kPa / 0.36 PSI
	Variant001D                // 6.89 kPa / 1 PSI
	Variant005D                // 34.47 kPa / 5 PSI
	Variant015D                // 103.42 kPa / 15 PSI
	Variant030D                // 206.84 kPa / 30 PSI
)

// Full scale of each variant in pascals.
const (
	Scale02WD = 500
	Scale05WD = 1250
	Scale10WD = 2490
	Scale001D = 6890
	Scale005D = 34470
	Scale015D = 103420
	Scale030D = 206840
)

var variants = []struct {
	variant Variant
	code    string
	scale   float32
}{
	{Variant02WD, "02WD", Scale02WD},
	{Variant05WD, "05WD", Scale05WD},
	{Variant10WD, "10WD", Scale10WD},
	{Variant001D, "001D", Scale001D},
	{Variant005D, "005D", Scale005D},
	{Variant015D, "015D", Scale015D},
	{Variant030D, "030D", Scale030D},
}

// Variants lists all supported parts in ascending range.
func Variants() []Variant {
	res := make([]Variant, 0, len(variants))
	for _, v := range variants {
		res = append(res, v.variant)
	}
	return res
}

// Scale returns the full-scale magnitude in pascals. The second return value
// is false for values outside the enumeration.
func (v Variant) Scale() (float32, bool) {
	if v < 0 || int(v) >= len(variants) {
		return 0, false
	}
	return variants[v].scale, true
}

// Range returns the symmetric measurement range in pascals.
func (v Variant) Range() (pmin, pmax float32, ok bool) {
	scale, ok := v.Scale()
	if !ok {
		return 0, 0, false
	}
	return -scale, scale, true
}

// Resolution is the pressure step of one output count.
func (v Variant) Resolution() (float32, bool) {
	scale, ok := v.Scale()
	if !ok {
		return 0, false
	}
	return 2 * scale / (CountMaxNonSaturated - CountMinNonSaturated), true
}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variants) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return "NPA-700-" + variants[v].code
}

// ParseVariant accepts the range code with or without the part prefix,
// e.g. "001D", "NPA-700-001D" or "npa700_001d".
func ParseVariant(s string) (Variant, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	for _, prefix := range []string{"NPA-700-", "NPA_700_", "NPA700-", "NPA700_", "NPA700", "NPA-730-", "NPA_730_", "NPA730-", "NPA730_", "NPA730"} {
		if strings.HasPrefix(code, prefix) {
			code = strings.TrimPrefix(code, prefix)
			break
		}
	}
	for _, v := range variants {
		if v.code == code {
			return v.variant, nil
		}
	}
	return 0, fmt.Errorf("unknown NPA-700 variant %q", s)
}

// Code returns the bare range code, e.g. "001D".
func (v Variant) Code() string {
	if v < 0 || int(v) >= len(variants) {
		return ""
	}
	return variants[v].code
}

func (v Variant) MarshalText() ([]byte, error) {
	code := v.Code()
	if code == "" {
		return nil, fmt.Errorf("unknown NPA-700 variant %d", int(v))
	}
	return []byte(code), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
