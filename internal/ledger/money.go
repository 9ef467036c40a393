package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// All engine arithmetic is in integer minor units (cents). Conversion to
// display units happens only at the presentation boundary via the
// helpers below.

// MinorUnitExponent is the number of decimal places in the display unit.
const MinorUnitExponent = 2

// Side is the accounting position of an entry.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

func ValidSide(s Side) bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the mirror side, used when building reversals.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// FormatMinorUnits renders minor units as a display amount, e.g. 120000 -> "1200.00".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}

// ParseMinorUnits converts a display amount like "1200.00" to minor
// units. Amounts with sub-cent precision are rejected.
func ParseMinorUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	shifted := d.Shift(MinorUnitExponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, MinorUnitExponent)
	}
	return shifted.IntPart(), nil
}
