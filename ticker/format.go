package ticker

import (
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// maxPriceDigits caps the total digits (integer part plus decimals) shown for
// mid-range prices, so cheap assets keep their significant digits while
// expensive ones stay readable.
const maxPriceDigits = 8

// FormatPrice renders a price with magnitude-dependent precision:
//
//   - >= 100000: rounded to a grouped integer, no decimals
//   - [100, 100000): grouped, exactly two decimals
//   - [1, 100): decimals fill up to maxPriceDigits total digits, truncated
//   - < 1: up to eight decimals with trailing zeros stripped
//
// The function is pure; identical input always yields the identical string.
func FormatPrice(p float64) string {
	switch {
	case p >= 100000:
		return humanize.Comma(int64(math.Round(p)))
	case p >= 100:
		return groupThousands(strconv.FormatFloat(p, 'f', 2, 64))
	case p >= 1:
		return formatSignificant(p)
	default:
		s := strconv.FormatFloat(p, 'f', maxPriceDigits, 64)
		s = strings.TrimRight(s, "0")
		return strings.TrimRight(s, ".")
	}
}

// groupThousands inserts thousands separators into the integer part of an
// already fixed-point formatted number.
func groupThousands(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return s
	}
	if !hasFrac {
		return humanize.Comma(n)
	}
	return humanize.Comma(n) + "." + frac
}

// formatSignificant renders prices in [1, 100) with as many decimals as fit
// into maxPriceDigits total digits. The fraction is truncated, not rounded,
// so the shown digits are exactly the leading digits of the price.
func formatSignificant(p float64) string {
	s := strconv.FormatFloat(p, 'f', maxPriceDigits, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	decimals := maxPriceDigits - len(intPart)
	if decimals <= 0 {
		return intPart
	}
	if decimals > len(frac) {
		decimals = len(frac)
	}
	return intPart + "." + frac[:decimals]
}
