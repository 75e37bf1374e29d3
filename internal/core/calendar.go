package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the text form of a Month.
const MonthLayout = "2006-01"

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// CalendarDay is one cell of the month view.
type CalendarDay struct {
	Date    Date
	Bills   []Bill
	Income  []Income
	InMonth bool // false for padding days of adjacent months
	IsToday bool
}

// MonthOf returns the month of d. The day component is ignored.
func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) Validate() error {
	if m.Month < time.January || m.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

// First returns the first day of the month.
func (m Month) First() Date {
	return NewDate(m.Year, m.Month, 1)
}

// Last returns the last day of the month.
func (m Month) Last() Date {
	return NewDate(m.Year, m.Month+1, 0)
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool {
	y, mon, _ := d.Date()
	return y == m.Year && mon == m.Month
}

// Days enumerates every day from First to Last inclusive.
func (m Month) Days() []Date {
	last := m.Last().Day()
	days := make([]Date, 0, last)
	for day := 1; day <= last; day++ {
		days = append(days, NewDate(m.Year, m.Month, day))
	}
	return days
}

// PartitionMonth returns one CalendarDay per day of ref's month. Each bill
// and income entry lands in the bucket for its calendar day; entries outside
// the month are not returned.
func PartitionMonth(ref, today Date, bills []Bill, income []Income) []CalendarDay {
	return partition(MonthOf(ref).Days(), MonthOf(ref), today, bills, income)
}

// PartitionGrid is PartitionMonth padded with days of the adjacent months so
// the result covers whole weeks starting on weekStart.
func PartitionGrid(ref, today Date, weekStart time.Weekday, bills []Bill, income []Income) []CalendarDay {
	m := MonthOf(ref)
	first, last := m.First(), m.Last()

	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7
	trail := (int(weekStart) + 6 - int(last.Weekday()) + 7) % 7

	days := make([]Date, 0, lead+last.Day()+trail)
	for i := lead; i > 0; i-- {
		days = append(days, first.AddDays(-i))
	}
	days = append(days, m.Days()...)
	for i := 1; i <= trail; i++ {
		days = append(days, last.AddDays(i))
	}
	return partition(days, m, today, bills, income)
}

func partition(days []Date, m Month, today Date, bills []Bill, income []Income) []CalendarDay {
	out := make([]CalendarDay, len(days))
	index := make(map[Date]int, len(days))
	for i, d := range days {
		out[i] = CalendarDay{
			Date:    d,
			InMonth: m.Contains(d),
			IsToday: d.SameDay(today),
		}
		index[d] = i
	}
	for _, b := range bills {
		if i, ok := index[DateOf(b.Date.Time)]; ok {
			out[i].Bills = append(out[i].Bills, b)
		}
	}
	for _, inc := range income {
		if i, ok := index[DateOf(inc.Date.Time)]; ok {
			out[i].Income = append(out[i].Income, inc)
		}
	}
	return out
}
