package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// minorUnitExp is the number of decimal places carried by one major unit.
const minorUnitExp = 2

// ErrAmountOutOfRange reports an amount that does not fit in Money.
var ErrAmountOutOfRange = errors.New("amount out of range")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts a major-unit decimal amount into minor units,
// rounding half away from zero.
func FromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(minorUnitExp).Round(0)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d.String())
	}
	return minor.IntPart(), nil
}

// FromMajor converts a whole major-unit amount into minor units.
func FromMajor(major int64) Money {
	return major * 100
}

// ParseMoney parses a major-unit decimal string such as "499" or "12.50".
func ParseMoney(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("parse money: empty value")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", trimmed, err)
	}
	m, err := FromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", trimmed, err)
	}
	return m, nil
}

// ToDecimal returns the major-unit decimal representation of m.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.New(m, -minorUnitExp)
}

// Format renders m in major units with two fixed decimal places.
func Format(m Money) string {
	return ToDecimal(m).StringFixed(minorUnitExp)
}
