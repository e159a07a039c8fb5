package calendar

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

// HolidaySource answers whether a calendar day is a public holiday. The date
// is interpreted by its year, month and day only.
type HolidaySource interface {
	Holiday(date time.Time) (name string, ok bool)
}

// Coverage is implemented by sources that only know some years.
type Coverage interface {
	Covers(year int) bool
}

// Covers reports whether hs knows the holidays of year. Sources without a
// known range are assumed to cover every year.
func Covers(hs HolidaySource, year int) bool {
	c, ok := hs.(Coverage)
	return !ok || c.Covers(year)
}

// Layered consults each source in order; the first match wins.
type Layered []HolidaySource

func (l Layered) Holiday(date time.Time) (string, bool) {
	for _, hs := range l {
		if hs == nil {
			continue
		}
		if name, ok := hs.Holiday(date); ok {
			return name, true
		}
	}
	return "", false
}

// Covers is true when any layer with a known range covers year, or when no
// layer declares a range.
func (l Layered) Covers(year int) bool {
	declared := false
	for _, hs := range l {
		c, ok := hs.(Coverage)
		if !ok {
			continue
		}
		declared = true
		if c.Covers(year) {
			return true
		}
	}
	return !declared
}

// Calendar is a date-keyed set of named holidays.
type Calendar struct {
	days map[string]string
}

type holidayFile struct {
	Holiday []struct {
		Date string `toml:"date"`
		Name string `toml:"name"`
	} `toml:"holiday"`
}

// Parse reads a TOML document of [[holiday]] tables with date = "YYYY-MM-DD".
func Parse(doc string) (*Calendar, error) {
	var f holidayFile
	if _, err := toml.Decode(doc, &f); err != nil {
		return nil, errors.Wrap(err, "decode holidays")
	}
	c := &Calendar{days: make(map[string]string, len(f.Holiday))}
	for _, h := range f.Holiday {
		d, err := time.Parse(dateLayout, strings.TrimSpace(h.Date))
		if err != nil {
			return nil, errors.Wrapf(err, "holiday %q", h.Name)
		}
		c.days[d.Format(dateLayout)] = h.Name
	}
	return c, nil
}

// Load reads a holiday file from disk.
func Load(path string) (*Calendar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read holidays")
	}
	c, err := Parse(string(b))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

func (c *Calendar) Holiday(date time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.days[date.Format(dateLayout)]
	return name, ok
}

func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.days)
}
