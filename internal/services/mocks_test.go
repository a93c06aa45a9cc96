package services

import (
	"database/sql/driver"

	"github.com/shopspring/decimal"
)

// decimalArg matches a driver value against a decimal by numeric equality,
// so "1000" and "1000.00" compare equal in expectations.
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		return false
	}

	got, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	want, err := decimal.NewFromString(string(d))
	if err != nil {
		return false
	}
	return got.Equal(want)
}
