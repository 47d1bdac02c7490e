package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const yearMonthLayout = "2006-01"

// YearMonth is a calendar month without day or time of day.
// The zero value means "not set".
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth returns a normalized YearMonth (month 13 rolls into the next year)
func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// YearMonthOf returns the month t falls in
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses the "2006-01" format
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
	}
	return YearMonthOf(t), nil
}

// MustParseYearMonth is ParseYearMonth for constants and tests
func MustParseYearMonth(s string) YearMonth {
	ym, err := ParseYearMonth(s)
	if err != nil {
		panic(err)
	}
	return ym
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// FirstDay returns midnight UTC on the first day of the month
func (ym YearMonth) FirstDay() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns midnight UTC on the last day of the month
func (ym YearMonth) LastDay() time.Time {
	return ym.FirstDay().AddDate(0, 1, -1)
}

func (ym YearMonth) AddMonths(n int) YearMonth {
	return YearMonthOf(ym.FirstDay().AddDate(0, n, 0))
}

// Compare returns -1, 0 or +1
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year < other.Year:
		return -1
	case ym.Year > other.Year:
		return 1
	case ym.Month < other.Month:
		return -1
	case ym.Month > other.Month:
		return 1
	}
	return 0
}

func (ym YearMonth) Before(other YearMonth) bool {
	return ym.Compare(other) < 0
}

func (ym YearMonth) After(other YearMonth) bool {
	return ym.Compare(other) > 0
}

// StartsBefore reports whether the first day of the month is strictly before t
func (ym YearMonth) StartsBefore(t time.Time) bool {
	return ym.FirstDay().Before(t)
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(text []byte) error {
	parsed, err := ParseYearMonth(string(text))
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(ym.String())
}

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("year-month must be a string: %w", err)
	}
	return ym.UnmarshalText([]byte(s))
}

// Value stores the month as the date of its first day
func (ym YearMonth) Value() (driver.Value, error) {
	if ym.IsZero() {
		return nil, nil
	}
	return ym.FirstDay(), nil
}

func (ym *YearMonth) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*ym = YearMonth{}
	case time.Time:
		*ym = YearMonthOf(v)
	case []byte:
		return ym.scanString(string(v))
	case string:
		return ym.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into YearMonth", src)
	}
	return nil
}

func (ym *YearMonth) scanString(s string) error {
	if len(s) >= len("2006-01-02") {
		t, err := time.Parse("2006-01-02", s[:10])
		if err != nil {
			return fmt.Errorf("cannot scan %q into YearMonth: %w", s, err)
		}
		*ym = YearMonthOf(t)
		return nil
	}
	return ym.UnmarshalText([]byte(s))
}

// MaxYearMonth returns the later of two months
func MaxYearMonth(a, b YearMonth) YearMonth {
	if a.After(b) {
		return a
	}
	return b
}
