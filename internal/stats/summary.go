package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Places is the rounding applied to every published kg figure.
const Places = 1

// Entry is the slice of a stored activity record the engine aggregates.
type Entry struct {
	OwnerID    string
	Category   string
	CO2Kg      float64
	OccurredAt time.Time
}

// Query selects one owner's entries inside a window, optionally for a single
// category.
type Query struct {
	OwnerID  string
	Window   Window
	Category string
}

func (q Query) matches(e Entry) bool {
	if e.OwnerID != q.OwnerID {
		return false
	}
	if q.Category != "" && !strings.EqualFold(e.Category, q.Category) {
		return false
	}
	return q.Window.Contains(e.OccurredAt)
}

// Summary is the aggregate over one window.
type Summary struct {
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	TotalEntries          int       `json:"total_entries"`
	TotalCO2              float64   `json:"total_co2"`
	UniqueDaysWithEntries int       `json:"unique_days_with_entries"`
}

// Summarize counts and sums the entries q selects. The total is rounded once
// after summation and distinct days are counted in the window's location.
func Summarize(q Query, entries []Entry) (Summary, error) {
	if err := validate(q.Window); err != nil {
		return Summary{}, err
	}

	loc := q.Window.loc()
	total := decimal.Zero
	days := make(map[civilDate]struct{})
	count := 0
	for _, e := range entries {
		if !q.matches(e) {
			continue
		}
		count++
		total = total.Add(decimal.NewFromFloat(e.CO2Kg))
		days[dateOf(e.OccurredAt, loc)] = struct{}{}
	}

	return Summary{
		StartDate:             q.Window.Start,
		EndDate:               q.Window.End,
		TotalEntries:          count,
		TotalCO2:              total.Round(Places).InexactFloat64(),
		UniqueDaysWithEntries: len(days),
	}, nil
}

// CategoryTotal is one row of a per-category breakdown.
type CategoryTotal struct {
	Category     string  `json:"category"`
	Entries      int     `json:"entries"`
	TotalCO2     float64 `json:"total_co2"`
	SharePercent float64 `json:"share_percent"`
}

// Breakdown groups the selected entries by category, largest total first.
func Breakdown(q Query, entries []Entry) ([]CategoryTotal, error) {
	if err := validate(q.Window); err != nil {
		return nil, err
	}

	type acc struct {
		count int
		total decimal.Decimal
	}
	byCategory := make(map[string]*acc)
	grand := decimal.Zero
	for _, e := range entries {
		if !q.matches(e) {
			continue
		}
		key := strings.ToLower(e.Category)
		a, ok := byCategory[key]
		if !ok {
			a = &acc{}
			byCategory[key] = a
		}
		kg := decimal.NewFromFloat(e.CO2Kg)
		a.count++
		a.total = a.total.Add(kg)
		grand = grand.Add(kg)
	}

	out := make([]CategoryTotal, 0, len(byCategory))
	for category, a := range byCategory {
		share := decimal.Zero
		if !grand.IsZero() {
			share = a.total.Div(grand).Mul(decimal.NewFromInt(100))
		}
		out = append(out, CategoryTotal{
			Category:     category,
			Entries:      a.count,
			TotalCO2:     a.total.Round(Places).InexactFloat64(),
			SharePercent: share.Round(Places).InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCO2 != out[j].TotalCO2 {
			return out[i].TotalCO2 > out[j].TotalCO2
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// DayTotal is one point of a daily series.
type DayTotal struct {
	Date     time.Time `json:"date"`
	Entries  int       `json:"entries"`
	TotalCO2 float64   `json:"total_co2"`
}

// Daily returns one point per calendar day in the window, days without entries
// included, in chronological order.
func Daily(q Query, entries []Entry) ([]DayTotal, error) {
	if err := validate(q.Window); err != nil {
		return nil, err
	}

	loc := q.Window.loc()
	type acc struct {
		count int
		total decimal.Decimal
	}
	byDay := make(map[civilDate]*acc)
	for _, e := range entries {
		if !q.matches(e) {
			continue
		}
		key := dateOf(e.OccurredAt, loc)
		a, ok := byDay[key]
		if !ok {
			a = &acc{}
			byDay[key] = a
		}
		a.count++
		a.total = a.total.Add(decimal.NewFromFloat(e.CO2Kg))
	}

	last := startOfDay(q.Window.End, loc)
	out := make([]DayTotal, 0, q.Window.Days())
	for day := startOfDay(q.Window.Start, loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		point := DayTotal{Date: day}
		if a, ok := byDay[dateOf(day, loc)]; ok {
			point.Entries = a.count
			point.TotalCO2 = a.total.Round(Places).InexactFloat64()
		}
		out = append(out, point)
	}
	return out, nil
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time, loc *time.Location) civilDate {
	y, m, d := t.In(loc).Date()
	return civilDate{year: y, month: m, day: d}
}

func validate(w Window) error {
	if w.Start.After(w.End) {
		_, err := NewWindow(w.Start, w.End, w.Location)
		return err
	}
	return nil
}
