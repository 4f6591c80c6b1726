// internal/snapshot/normalize.go
package snapshot

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)
	currencyNoise = strings.NewReplacer(
		"VND", "", "vnd", "",
		"USD", "", "usd", "",
		"$", "", "€", "", "¥", "",
		"₫", "", "đ", "", "Đ", "",
		" ", "", "\u00a0", "", "\t", "", "\n", "", "\r", "",
	)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// NormalizeInt turns any loosely typed upstream value into a non-negative
// integer. It never fails: unparseable input yields 0, fractional values are
// rounded half away from zero, negatives clamp to 0 and overflow clamps to
// math.MaxInt64.
func NormalizeInt(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case int:
		return clampInt(int64(v))
	case int8:
		return clampInt(int64(v))
	case int16:
		return clampInt(int64(v))
	case int32:
		return clampInt(int64(v))
	case int64:
		return clampInt(v)
	case uint:
		return clampUint(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return clampUint(v)
	case float32:
		return clampFloat(float64(v))
	case float64:
		return clampFloat(v)
	case json.Number:
		if d, err := decimal.NewFromString(string(v)); err == nil {
			return clampDecimal(d)
		}
		// Exponents beyond int32 do not fit a decimal.
		if f, err := strconv.ParseFloat(string(v), 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return clampFloat(f)
		}
		return normalizeString(string(v))
	case string:
		return normalizeString(v)
	default:
		return 0
	}
}

func clampInt(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampUint(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

func clampFloat(v float64) int64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case math.IsInf(v, 1), v >= math.MaxInt64:
		return math.MaxInt64
	}
	return clampDecimal(decimal.NewFromFloat(v))
}

// clampDecimal bounds the magnitude before rounding, since Round rescales the
// coefficient to exponent 0.
func clampDecimal(d decimal.Decimal) int64 {
	if d.Sign() <= 0 {
		return 0
	}
	// d lies in [10^magnitude, 10^(magnitude+1)).
	magnitude := int64(d.Exponent()) + int64(d.NumDigits()) - 1
	switch {
	case magnitude >= 19:
		return math.MaxInt64
	case magnitude < -1:
		return 0
	}

	d = d.Round(0)
	if d.Sign() <= 0 {
		return 0
	}
	if d.GreaterThanOrEqual(maxInt64) {
		return math.MaxInt64
	}
	return d.IntPart()
}

func normalizeString(s string) int64 {
	s = currencyNoise.Replace(strings.TrimSpace(s))
	match := numberPattern.FindString(s)
	if match == "" {
		return 0
	}

	d, err := decimal.NewFromString(canonicalNumber(match))
	if err != nil {
		return 0
	}
	return clampDecimal(d)
}

// canonicalNumber rewrites a number written with thousands separators and a
// decimal comma or point into plain "1234.56" form.
//
//	"1.234,56" -> "1234.56"    "1,234.56" -> "1234.56"
//	"25.000"   -> "25000"      "12,5"     -> "12.5"
//	"1.5"      -> "1.5"        "1.000.000" -> "1000000"
func canonicalNumber(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	var intPart, fracPart string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		sep := lastDot
		if lastComma > lastDot {
			sep = lastComma
		}
		intPart, fracPart = s[:sep], s[sep+1:]
	case lastDot >= 0:
		intPart, fracPart = splitSingleSeparator(s, ".")
	case lastComma >= 0:
		intPart, fracPart = splitSingleSeparator(s, ",")
	default:
		intPart = s
	}

	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// splitSingleSeparator decides whether a lone separator kind marks decimals or
// thousands. Repeated occurrences, or a single one followed by exactly three
// digits, are read as thousands grouping.
func splitSingleSeparator(s, sep string) (string, string) {
	if strings.Count(s, sep) > 1 {
		return s, ""
	}
	i := strings.Index(s, sep)
	if len(s)-i-1 == 3 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
