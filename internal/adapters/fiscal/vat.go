package fiscal

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// inclusiveVAT returns the VAT portion contained in a tax-inclusive gross amount
func inclusiveVAT(gross, ratePercent decimal.Decimal) decimal.Decimal {
	if !ratePercent.IsPositive() || gross.IsZero() {
		return decimal.Zero
	}
	return gross.Mul(ratePercent).Div(hundred.Add(ratePercent)).Round(2)
}

// money marshals as a JSON string with two decimals
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + decimal.Decimal(m).StringFixed(2) + `"`), nil
}

// quantity marshals as a JSON string with three decimals
type quantity decimal.Decimal

func (q quantity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + decimal.Decimal(q).StringFixed(3) + `"`), nil
}
