package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day. It serializes as "YYYY-MM-DD"
// and maps to a SQL date column.
type Date struct {
	time.Time
}

// NewDate returns the date y-m-d at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp, keeping only the date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return errors.New("date must not be null")
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. Drivers hand dates back either as time.Time
// (pgx, sqlite with a date column) or as text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MoneyScale is the number of fractional digits kept for money amounts.
const MoneyScale = 2

// MaxMoney is the largest amount a decimal(10,2) column holds.
var MaxMoney = decimal.RequireFromString("99999999.99")

// Money is a fixed-point amount with two fractional digits. It serializes as a
// JSON number ("100.50") and maps to a decimal(10,2) column.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d.
func NewMoney(d decimal.Decimal) Money {
	return Money{d}
}

// ParseMoney parses a decimal string such as "100.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

func (m Money) String() string {
	return m.StringFixed(MoneyScale)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both a JSON number and a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return errors.New("payment must not be null")
	}
	return m.Decimal.UnmarshalJSON(b)
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	return m.Decimal.Scan(src)
}
