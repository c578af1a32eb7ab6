package aggregate

import "github.com/shopspring/decimal"

var half = decimal.New(5, -1)

// Round2 rounds half-up (toward +inf) to two decimal places. The value is
// taken at its shortest decimal representation, so 1.005 becomes 1.01.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Shift(2).Add(half).Floor().Shift(-2).Float64()
	return f
}

func round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}
