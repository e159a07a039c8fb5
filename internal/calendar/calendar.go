package calendar

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DayInfo is the business-day verdict for one calendar day.
type DayInfo struct {
	IsBusinessDay bool   `json:"isBusinessDay"`
	Comment       string `json:"comment"`
}

// Classify decides whether now, seen in loc, falls on a business day:
// a Monday to Friday that is not in holidays.
func Classify(now time.Time, loc *time.Location, holidays HolidaySource) DayInfo {
	local := now.In(loc)

	if wd := isoWeekday(local); wd > 5 {
		return DayInfo{
			IsBusinessDay: false,
			Comment:       fmt.Sprintf("Today is weekend: %d", wd),
		}
	}

	if holidays != nil {
		if name, ok := holidays.Holiday(local); ok {
			return DayInfo{
				IsBusinessDay: false,
				Comment:       fmt.Sprintf("Today is holiday: %s", name),
			}
		}
	}

	return DayInfo{
		IsBusinessDay: true,
		Comment:       fmt.Sprintf("Today is weekday %s", local.Format(dateLayout)),
	}
}

// isoWeekday maps Monday..Sunday to 1..7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Classifier binds Classify to a configured zone and holiday source.
type Classifier struct {
	loc      *time.Location
	holidays HolidaySource
	log      logrus.FieldLogger
}

func NewClassifier(timezone string, holidays HolidaySource) (*Classifier, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid time zone %q", timezone)
	}
	return &Classifier{loc: loc, holidays: holidays}, nil
}

func NewClassifierIn(loc *time.Location, holidays HolidaySource) *Classifier {
	return &Classifier{loc: loc, holidays: holidays}
}

// WithLogger makes Classify warn when the holiday source does not know the
// year being classified.
func (c *Classifier) WithLogger(log logrus.FieldLogger) *Classifier {
	c.log = log
	return c
}

func (c *Classifier) Classify(now time.Time) DayInfo {
	if c.log != nil && c.holidays != nil {
		if year := now.In(c.loc).Year(); !Covers(c.holidays, year) {
			c.log.WithField("year", year).Warn("holiday calendar does not cover this year; holidays may be classified as business days")
		}
	}
	return Classify(now, c.loc, c.holidays)
}

func (c *Classifier) Location() *time.Location { return c.loc }
