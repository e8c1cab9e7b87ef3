package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Price is a fixed-point amount with two decimal places, stored as cents.
// It maps to a DECIMAL(5,2) column and is rendered in JSON as a string
// ("5.25") so that no precision is lost on the wire.
type Price int64

// MaxPrice is the largest value a DECIMAL(5,2) column accepts.
const MaxPrice Price = 99999

var ErrInvalidPrice = errors.New("invalid price")

// maxWholeDigits keeps the cents value well inside int64.
const maxWholeDigits = 15

// ParsePrice parses a decimal string such as "5", "5.2" or "5.25".
// More than two fractional digits is an error, not a rounding. The range
// of the column is not checked here; callers compare against MaxPrice.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidPrice
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, ErrInvalidPrice
	}
	if len(frac) > 2 || !digits(whole) || !digits(frac) {
		return 0, ErrInvalidPrice
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	if len(whole) > maxWholeDigits {
		return 0, ErrInvalidPrice
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return Price(cents), nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String formats the price with exactly two decimals.
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the price as a decimal string.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts both "5.25" and 5.25.
func (p *Price) UnmarshalJSON(b []byte) error {
	s := string(b)
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Value implements driver.Valuer.
func (p Price) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner. MySQL returns DECIMAL columns as text.
func (p *Price) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = 0
		return nil
	case []byte:
		return p.scanString(string(v))
	case string:
		return p.scanString(v)
	case int64:
		*p = Price(v * 100)
		return nil
	case float64:
		return p.scanString(strconv.FormatFloat(v, 'f', 2, 64))
	}
	return fmt.Errorf("price: unsupported scan type %T", src)
}

func (p *Price) scanString(s string) error {
	v, err := ParsePrice(s)
	if err != nil {
		return fmt.Errorf("price: scan %q: %w", s, err)
	}
	*p = v
	return nil
}
