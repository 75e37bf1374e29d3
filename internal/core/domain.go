package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateLayout is the wire and storage form of a Date.
	DateLayout = "2006-01-02"

	MaxDescriptionLength = 200
)

type (
	// Date is a calendar day. The wrapped time is always midnight UTC so two
	// Dates for the same day compare equal regardless of where they came from.
	Date struct {
		time.Time
	}

	Bill struct {
		ID          string
		Date        Date
		Amount      Money
		Description string
		IsPaid      bool
	}

	Income struct {
		ID          string
		Date        Date
		Amount      Money
		Description string
	}

	// BillPatch carries a partial update. Nil fields are left unchanged.
	BillPatch struct {
		Date        *Date
		Amount      *Money
		Description *string
		IsPaid      *bool
	}

	// IncomePatch carries a partial update. Nil fields are left unchanged.
	IncomePatch struct {
		Date        *Date
		Amount      *Money
		Description *string
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

// ValidationError ties a validation failure to the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// SameDay reports whether d and o are the same calendar day.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Before reports whether d is an earlier calendar day than o. Both sides are
// compared by their wall-clock day, whatever location they carry.
func (d Date) Before(o Date) bool {
	return DateOf(d.Time).Time.Before(DateOf(o.Time).Time)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	return d.UnmarshalText([]byte(s))
}

// ValidateEntry applies the input rules shared by bills and income.
func ValidateEntry(date Date, amount Money, description string) error {
	if err := date.Validate(); err != nil {
		return invalid("date", err)
	}
	if err := amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	return validateDescription(description)
}

func validateDescription(desc string) error {
	if strings.TrimSpace(desc) == "" {
		return invalid("description", ErrEmptyDescription)
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return invalid("description", ErrDescriptionTooLong)
	}
	return nil
}

func (b Bill) Validate() error {
	return ValidateEntry(b.Date, b.Amount, b.Description)
}

func (i Income) Validate() error {
	return ValidateEntry(i.Date, i.Amount, i.Description)
}

// Validate checks only the fields that are set.
func (p BillPatch) Validate() error {
	return validatePatch(p.Date, p.Amount, p.Description)
}

// Validate checks only the fields that are set.
func (p IncomePatch) Validate() error {
	return validatePatch(p.Date, p.Amount, p.Description)
}

func validatePatch(date *Date, amount *Money, desc *string) error {
	if date != nil {
		if err := date.Validate(); err != nil {
			return invalid("date", err)
		}
	}
	if amount != nil {
		if err := amount.Validate(); err != nil {
			return invalid("amount", err)
		}
	}
	if desc != nil {
		return validateDescription(*desc)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p BillPatch) IsEmpty() bool {
	return p.Date == nil && p.Amount == nil && p.Description == nil && p.IsPaid == nil
}

// IsEmpty reports whether the patch changes nothing.
func (p IncomePatch) IsEmpty() bool {
	return p.Date == nil && p.Amount == nil && p.Description == nil
}

// Apply returns b with the patch merged in.
func (p BillPatch) Apply(b Bill) Bill {
	if p.Date != nil {
		b.Date = *p.Date
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.IsPaid != nil {
		b.IsPaid = *p.IsPaid
	}
	return b
}

// Apply returns i with the patch merged in.
func (p IncomePatch) Apply(i Income) Income {
	if p.Date != nil {
		i.Date = *p.Date
	}
	if p.Amount != nil {
		i.Amount = *p.Amount
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	return i
}
