// Package amount implements the monetary amount used for balances and dues.
//
// An amount is an exact, non-negative integer number of base units. One ledger
// unit is worth 10^18 base units, like a wei for an ether. Amounts are never
// represented with binary floating points.
package amount

import (
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/xerrors"
)

// Decimals is the number of decimal places of a ledger unit.
const Decimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ErrNegative is returned when an operation would produce a negative amount.
var ErrNegative = xerrors.New("negative amount")

// Amount is an immutable non-negative quantity of base units. The zero value is
// a valid zero amount.
type Amount struct {
	base *big.Int
}

// Zero returns the zero amount.
func Zero() Amount {
	return Amount{}
}

// FromBase creates an amount out of a number of base units.
func FromBase(base *big.Int) (Amount, error) {
	if base == nil {
		return Amount{}, nil
	}

	if base.Sign() < 0 {
		return Amount{}, xerrors.Errorf("base %s: %w", base, ErrNegative)
	}

	return Amount{base: new(big.Int).Set(base)}, nil
}

// FromUnits creates an amount of whole ledger units.
func FromUnits(units uint64) Amount {
	base := new(big.Int).SetUint64(units)

	return Amount{base: base.Mul(base, unit)}
}

// FromRat creates an amount out of a rational number of ledger units. It fails
// when the number is negative or has more decimals than a base unit.
func FromRat(r *big.Rat) (Amount, error) {
	if r.Sign() < 0 {
		return Amount{}, xerrors.Errorf("units %s: %w", r.RatString(), ErrNegative)
	}

	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(unit))
	if !scaled.IsInt() {
		return Amount{}, xerrors.Errorf("'%s' exceeds %d decimals", r.RatString(), Decimals)
	}

	return Amount{base: new(big.Int).Set(scaled.Num())}, nil
}

// decimalPattern only accepts plain decimals. big.Rat would also take
// prefixes, exponents and separators.
var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Parse reads a decimal string of ledger units, e.g. "0.00019996".
func Parse(text string) (Amount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{}, xerrors.New("empty amount")
	}

	if !decimalPattern.MatchString(text) {
		return Amount{}, xerrors.Errorf("malformed amount '%s'", text)
	}

	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return Amount{}, xerrors.Errorf("malformed amount '%s'", text)
	}

	a, err := FromRat(r)
	if err != nil {
		return Amount{}, xerrors.Errorf("invalid amount: %w", err)
	}

	return a, nil
}

// MustParse is like Parse but panics on error. It is meant for constants.
func MustParse(text string) Amount {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return a
}

// Base returns a copy of the number of base units.
func (a Amount) Base() *big.Int {
	if a.base == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(a.base)
}

// Rat returns the amount as a rational number of ledger units.
func (a Amount) Rat() *big.Rat {
	return new(big.Rat).SetFrac(a.Base(), unit)
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.base == nil || a.base.Sign() == 0
}

// Cmp compares the two amounts and returns -1, 0 or +1.
func (a Amount) Cmp(o Amount) int {
	return a.Base().Cmp(o.Base())
}

// Equal returns true if both amounts are the same.
func (a Amount) Equal(o Amount) bool {
	return a.Cmp(o) == 0
}

// Add returns the sum of both amounts.
func (a Amount) Add(o Amount) Amount {
	return Amount{base: new(big.Int).Add(a.Base(), o.Base())}
}

// Sub returns the difference of both amounts, or an error if the result would
// be negative.
func (a Amount) Sub(o Amount) (Amount, error) {
	res := new(big.Int).Sub(a.Base(), o.Base())
	if res.Sign() < 0 {
		return Amount{}, xerrors.Errorf("%s - %s: %w", a, o, ErrNegative)
	}

	return Amount{base: res}, nil
}

// String implements fmt.Stringer. It returns the decimal representation in
// ledger units without trailing zeros.
func (a Amount) String() string {
	base := a.Base()

	quo, rem := new(big.Int).QuoRem(base, unit, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String()
	}

	frac := rem.String()
	frac = strings.Repeat("0", Decimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")

	return quo.String() + "." + frac
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	res, err := Parse(string(data))
	if err != nil {
		return err
	}

	*a = res

	return nil
}
