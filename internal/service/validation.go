package service

import (
	"net/mail"
	"strings"
	"time"

	"github.com/urielssan/subite/internal/domain"
	"github.com/urielssan/subite/internal/models"
)

func parseRoute(raw string) (models.Route, error) {
	r, err := models.ParseRoute(raw)
	if err != nil {
		return "", domain.ValidationError{Field: "route", Msg: "must be RC-CBA or CBA-RC", Err: err}
	}
	return r, nil
}

func parseDate(raw string) (time.Time, error) {
	d, err := models.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, domain.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func parseTime(raw string) (models.TimeOfDay, error) {
	t, err := models.ParseTimeOfDay(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ValidationError{Field: "time", Msg: "must be HH:MM", Err: err}
	}
	return t, nil
}

func normalizeContact(c models.Contact) (models.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)

	if c.Name == "" {
		return c, domain.Invalid("name", "is required")
	}
	if c.Phone == "" {
		return c, domain.Invalid("phone", "is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return c, domain.ValidationError{Field: "email", Msg: "is not a valid address", Err: err}
		}
	}
	return c, nil
}

// window applies the booking time rules against one reading of the clock.
type window struct {
	now   time.Time
	today time.Time
}

func newWindow(clock domain.Clock) window {
	now := clock.Now()
	return window{now: now, today: models.DateOf(now)}
}

func (w window) checkDate(date time.Time) error {
	if date.Before(w.today) {
		return domain.Invalid("date", "%s is in the past", models.FormatDate(date))
	}
	return nil
}

// slotPassed reports whether a departure at t on date is strictly before the
// current minute.
func (w window) slotPassed(date time.Time, t models.TimeOfDay) bool {
	return t.On(date, w.now.Location()).Before(w.now.Truncate(time.Minute))
}

// checkExclusive requires same-day exclusive trips to start at least
// ExclusiveLeadHours from now.
func (w window) checkExclusive(date time.Time, t models.TimeOfDay) error {
	if err := w.checkDate(date); err != nil {
		return err
	}
	if !date.Equal(w.today) {
		return nil
	}

	cutoff := w.now.Truncate(time.Minute).Add(models.ExclusiveLeadHours * time.Hour)
	if models.DateOf(cutoff).After(w.today) || t.Before(models.TimeOfDayOf(cutoff)) {
		return domain.Invalid("time", "same-day trips need at least %d hours notice", models.ExclusiveLeadHours)
	}
	return nil
}
