package calendar

import (
	"math"
	"time"
)

// Years for which the current holiday law and the equinox approximation
// hold.
const (
	japanFirstYear = 2022
	japanLastYear  = 2099
)

const (
	substituteHoliday = "Substitute Holiday"
	citizensHoliday   = "Citizens' Holiday"
)

// JapanRules computes Japanese public holidays from the Act on National
// Holidays: fixed dates, Happy Monday holidays, equinoxes, substitute
// holidays and citizens' holidays.
type JapanRules struct{}

// Japan returns the rule-based Japanese public holiday source.
func Japan() JapanRules { return JapanRules{} }

func (JapanRules) Covers(year int) bool {
	return year >= japanFirstYear && year <= japanLastYear
}

func (j JapanRules) Holiday(date time.Time) (string, bool) {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	if name, ok := national(day); ok {
		return name, true
	}

	// A holiday on Sunday moves to the next day that is not a holiday.
	for prev := day.AddDate(0, 0, -1); ; prev = prev.AddDate(0, 0, -1) {
		if _, ok := national(prev); !ok {
			break
		}
		if prev.Weekday() == time.Sunday {
			return substituteHoliday, true
		}
	}

	// A weekday between two holidays is a holiday too.
	if day.Weekday() != time.Sunday {
		_, before := national(day.AddDate(0, 0, -1))
		_, after := national(day.AddDate(0, 0, 1))
		if before && after {
			return citizensHoliday, true
		}
	}
	return "", false
}

// national reports the holidays named in the law, without substitutes.
func national(day time.Time) (string, bool) {
	y, m, d := day.Date()
	switch m {
	case time.January:
		switch {
		case d == 1:
			return "New Year's Day", true
		case d == nthMonday(y, m, 2):
			return "Coming of Age Day", true
		}
	case time.February:
		switch d {
		case 11:
			return "National Foundation Day", true
		case 23:
			return "Emperor's Birthday", true
		}
	case time.March:
		if d == equinox(y, 20.8431) {
			return "Vernal Equinox Day", true
		}
	case time.April:
		if d == 29 {
			return "Showa Day", true
		}
	case time.May:
		switch d {
		case 3:
			return "Constitution Memorial Day", true
		case 4:
			return "Greenery Day", true
		case 5:
			return "Children's Day", true
		}
	case time.July:
		if d == nthMonday(y, m, 3) {
			return "Marine Day", true
		}
	case time.August:
		if d == 11 {
			return "Mountain Day", true
		}
	case time.September:
		switch d {
		case nthMonday(y, m, 3):
			return "Respect for the Aged Day", true
		case equinox(y, 23.2488):
			return "Autumnal Equinox Day", true
		}
	case time.October:
		if d == nthMonday(y, m, 2) {
			return "Sports Day", true
		}
	case time.November:
		switch d {
		case 3:
			return "Culture Day", true
		case 23:
			return "Labor Thanksgiving Day", true
		}
	}
	return "", false
}

func nthMonday(year int, month time.Month, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	offset := (int(time.Monday) - int(first) + 7) % 7
	return 1 + offset + 7*(n-1)
}

// equinox returns the day of month of the equinox for 1980-2099, base being
// the 1980 value of the approximation.
func equinox(year int, base float64) int {
	n := year - 1980
	return int(math.Floor(base+0.242194*float64(n))) - n/4
}
