// Package dues computes the payment a ship owes before it can be cleared.
//
// The dues are the light dues and the salvage dues for the net tonnage of the
// ship, scaled down to ledger units and rounded to 8 decimal places:
//
//	round((RateLight + RateSalvage) * netTonnage / Scale, Precision)
package dues

import (
	"math/big"

	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"golang.org/x/xerrors"
)

const (
	// RateLight is the default light dues rate per net ton.
	RateLight = "0.169323"

	// RateSalvage is the default salvage dues rate per net ton.
	RateSalvage = "0.08063"

	// Scale is the default divisor converting the dues into ledger units.
	Scale = 1_000_000

	// Precision is the number of decimal places kept after rounding.
	Precision = 8
)

// Rates are the parameters of the computation.
type Rates struct {
	Light   string
	Salvage string
	Scale   uint64
}

// DefaultRates returns the default parameters.
func DefaultRates() Rates {
	return Rates{
		Light:   RateLight,
		Salvage: RateSalvage,
		Scale:   Scale,
	}
}

// Calculator computes the dues of a ship. It is pure and safe for concurrent
// use.
type Calculator struct {
	rate  *big.Rat
	scale *big.Rat
}

// NewCalculator creates a calculator with the default rates.
func NewCalculator() Calculator {
	calc, err := NewCalculatorWithRates(DefaultRates())
	if err != nil {
		panic("default rates are invalid: " + err.Error())
	}

	return calc
}

// NewCalculatorWithRates creates a calculator with custom rates. The rates must
// be non-negative decimal numbers and the scale must be positive.
func NewCalculatorWithRates(rates Rates) (Calculator, error) {
	light, err := parseRate(rates.Light)
	if err != nil {
		return Calculator{}, xerrors.Errorf("light rate: %v", err)
	}

	salvage, err := parseRate(rates.Salvage)
	if err != nil {
		return Calculator{}, xerrors.Errorf("salvage rate: %v", err)
	}

	if rates.Scale == 0 {
		return Calculator{}, xerrors.New("scale must be positive")
	}

	calc := Calculator{
		rate:  new(big.Rat).Add(light, salvage),
		scale: new(big.Rat).SetInt(new(big.Int).SetUint64(rates.Scale)),
	}

	return calc, nil
}

// Compute returns the dues for the net tonnage, or ErrInvalidTonnage if the
// tonnage is zero.
func (c Calculator) Compute(netTonnage uint64) (amount.Amount, error) {
	if netTonnage == 0 {
		return amount.Amount{}, xerrors.Errorf("tonnage 0: %w", core.ErrInvalidTonnage)
	}

	tonnage := new(big.Rat).SetInt(new(big.Int).SetUint64(netTonnage))

	value := new(big.Rat).Mul(c.rate, tonnage)
	value.Quo(value, c.scale)

	res, err := amount.FromRat(round(value, Precision))
	if err != nil {
		return amount.Amount{}, xerrors.Errorf("failed to convert dues: %v", err)
	}

	return res, nil
}

// ComputeSigned is like Compute but accepts a signed tonnage as typed by a
// user. Zero and negative tonnages fail with ErrInvalidTonnage.
func (c Calculator) ComputeSigned(netTonnage int64) (amount.Amount, error) {
	if netTonnage <= 0 {
		return amount.Amount{}, xerrors.Errorf("tonnage %d: %w", netTonnage, core.ErrInvalidTonnage)
	}

	return c.Compute(uint64(netTonnage))
}

// round rounds a non-negative rational to the given number of decimal places,
// half away from zero.
func round(r *big.Rat, places int64) *big.Rat {
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(places), nil)

	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(factor))
	scaled.Add(scaled, big.NewRat(1, 2))

	floor := new(big.Int).Quo(scaled.Num(), scaled.Denom())

	return new(big.Rat).SetFrac(floor, factor)
}

func parseRate(text string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, xerrors.Errorf("malformed rate '%s'", text)
	}

	if r.Sign() < 0 {
		return nil, xerrors.Errorf("negative rate '%s'", text)
	}

	return r, nil
}
