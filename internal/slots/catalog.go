// Package slots holds the canonical departure times of each route.
package slots

import (
	"fmt"
	"sort"
	"time"

	"github.com/urielssan/subite/internal/config"
	"github.com/urielssan/subite/internal/models"
)

// Catalog maps each route to its canonical times for weekdays and Sundays.
// Lists keep the configured order; Nearest breaks ties by that order.
type Catalog struct {
	weekday map[models.Route][]models.TimeOfDay
	sunday  map[models.Route][]models.TimeOfDay
}

// NewCatalog builds a catalog from explicit lists.
func NewCatalog(weekday, sunday map[models.Route][]models.TimeOfDay) *Catalog {
	c := &Catalog{
		weekday: make(map[models.Route][]models.TimeOfDay, len(weekday)),
		sunday:  make(map[models.Route][]models.TimeOfDay, len(sunday)),
	}
	for r, ts := range weekday {
		c.weekday[r] = append([]models.TimeOfDay(nil), ts...)
	}
	for r, ts := range sunday {
		c.sunday[r] = append([]models.TimeOfDay(nil), ts...)
	}
	return c
}

// FromConfig parses the slot lists of the configuration.
func FromConfig(cfg config.SlotsConfig) (*Catalog, error) {
	weekday, err := parseLists("weekday", cfg.Weekday)
	if err != nil {
		return nil, err
	}
	sunday, err := parseLists("sunday", cfg.Sunday)
	if err != nil {
		return nil, err
	}
	return NewCatalog(weekday, sunday), nil
}

func parseLists(name string, raw map[string][]string) (map[models.Route][]models.TimeOfDay, error) {
	out := make(map[models.Route][]models.TimeOfDay, len(raw))
	for key, list := range raw {
		route, err := models.ParseRoute(key)
		if err != nil {
			return nil, fmt.Errorf("slots.%s: %w", name, err)
		}
		for _, s := range list {
			t, err := models.ParseTimeOfDay(s)
			if err != nil {
				return nil, fmt.Errorf("slots.%s.%s: %w", name, key, err)
			}
			out[route] = append(out[route], t)
		}
	}
	return out, nil
}

// For returns the canonical times of route on date, Sunday list on Sundays.
func (c *Catalog) For(route models.Route, date time.Time) []models.TimeOfDay {
	if date.Weekday() == time.Sunday {
		return c.sunday[route]
	}
	return c.weekday[route]
}

// Sorted returns the canonical times of route on date in ascending order.
func (c *Catalog) Sorted(route models.Route, date time.Time) []models.TimeOfDay {
	ts := append([]models.TimeOfDay(nil), c.For(route, date)...)
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	return ts
}

// Contains reports whether t is canonical for route on date.
func (c *Catalog) Contains(route models.Route, date time.Time, t models.TimeOfDay) bool {
	for _, canon := range c.For(route, date) {
		if canon == t {
			return true
		}
	}
	return false
}

// Nearest returns the canonical time closest to t. On equal distance the
// first time in canonical order wins. It reports false when the route has
// no canonical times that day.
func (c *Catalog) Nearest(route models.Route, date time.Time, t models.TimeOfDay) (models.TimeOfDay, bool) {
	list := c.For(route, date)
	if len(list) == 0 {
		return 0, false
	}
	best := list[0]
	bestDist := best.Distance(t)
	for _, canon := range list[1:] {
		if d := canon.Distance(t); d < bestDist {
			best, bestDist = canon, d
		}
	}
	return best, true
}
