package domain

import "fmt"

const fixed8Decimals = 100000000

// Fixed8 is a ledger amount with 8 decimal places of precision, stored as the
// raw integer number of the smallest unit.
type Fixed8 int64

func Fixed8FromInt(value int64) Fixed8 {
	return Fixed8(value * fixed8Decimals)
}

func (f Fixed8) Add(other Fixed8) Fixed8 {
	return f + other
}

// Int returns the amount truncated to whole units.
func (f Fixed8) Int() int64 {
	return int64(f) / fixed8Decimals
}

func (f Fixed8) Value() int64 {
	return int64(f)
}

func (f Fixed8) String() string {
	whole := int64(f) / fixed8Decimals
	frac := int64(f) % fixed8Decimals
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%08d", whole, frac)
}
