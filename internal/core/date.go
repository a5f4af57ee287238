package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar date without time of day. It may hold a literal date
// such as 31/02/2024 that does not exist in the calendar; arithmetic on such
// a value normalizes it the way time.Date does.
type Date struct {
	civil.Date
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{civil.Date{Year: year, Month: time.Month(month), Day: day}}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// Today returns the current date in loc.
func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}

// ParseLocalizedDate parses a DD/MM/YYYY date. The day is checked against
// 1..31 only, so 31/02/2024 is accepted as written.
func ParseLocalizedDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 || len(parts[0]) != 2 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return Date{}, ErrInvalidDate
	}
	return dateFromParts(parts[2], parts[1], parts[0])
}

// ParseISODate parses YYYY-MM-DD with the same range rules as
// ParseLocalizedDate.
func ParseISODate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, ErrInvalidDate
	}
	return dateFromParts(parts[0], parts[1], parts[2])
}

func dateFromParts(ys, ms, ds string) (Date, error) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return Date{}, ErrInvalidDate
	}
	if m < 1 || m > 12 {
		return Date{}, fmt.Errorf("%w: month %d", ErrInvalidDate, m)
	}
	if d < 1 || d > 31 {
		return Date{}, fmt.Errorf("%w: day %d", ErrInvalidDate, d)
	}
	return NewDate(y, m, d), nil
}

// UnmarshalText accepts YYYY-MM-DD, then DD/MM/YYYY.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseISODate(string(b))
	if err != nil {
		if parsed, err = ParseLocalizedDate(string(b)); err != nil {
			return err
		}
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidDate, d.Month)
	}
	if d.Day < 1 || d.Day > 31 {
		return fmt.Errorf("%w: day %d", ErrInvalidDate, d.Day)
	}
	return nil
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d, normalized.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Normalize folds a literal out-of-month day into the calendar.
func (d Date) Normalize() Date {
	return DateOf(d.Time())
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// AddMonthsKeepDay keeps the day of month and lets time.Date normalize it, so
// 2024-01-31 plus one month is 2024-03-02.
func (d Date) AddMonthsKeepDay(n int) Date {
	return DateOf(time.Date(d.Year, d.Month+time.Month(n), d.Day, 0, 0, 0, 0, time.UTC))
}

// Compare orders dates field by field, so literal dates keep their position.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool  { return d.Compare(o) == 0 }

// InRange reports start <= d <= endInclusive.
func (d Date) InRange(start, endInclusive Date) bool {
	return !d.Before(start) && !d.After(endInclusive)
}

// MonthKey returns "YYYY-MM".
func (d Date) MonthKey() MonthKey {
	return MonthKey{Year: d.Year, Month: d.Month}
}

// Localized renders d as DD/MM/YYYY.
func (d Date) Localized() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// ParseMonthKey parses "YYYY-MM".
func ParseMonthKey(s string) (MonthKey, error) {
	ys, ms, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || len(ys) != 4 || len(ms) != 2 {
		return MonthKey{}, fmt.Errorf("%w: month key %q", ErrInvalidDate, s)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: month key %q", ErrInvalidDate, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return MonthKey{}, fmt.Errorf("%w: month key %q", ErrInvalidDate, s)
	}
	return MonthKey{Year: y, Month: time.Month(m)}, nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Range returns [first day of k, first day of the next month).
func (k MonthKey) Range() (Date, Date) {
	start := NewDate(k.Year, int(k.Month), 1)
	return start, start.AddMonthsKeepDay(1)
}

// Add returns the month n months after k.
func (k MonthKey) Add(n int) MonthKey {
	start, _ := k.Range()
	return start.AddMonthsKeepDay(n).MonthKey()
}

// MonthRange is the function form of MonthKey.Range.
func MonthRange(k MonthKey) (Date, Date) {
	return k.Range()
}
