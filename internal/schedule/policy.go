package schedule

import (
	"time"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/model"
)

// Policy is the operating window and booking policy of the laundry.
type Policy struct {
	Location     *time.Location
	Open         time.Duration // offset from local midnight
	Close        time.Duration
	Slot         time.Duration
	CategorySlot map[model.Category]time.Duration

	// SameDayCutoff closes booking for the current day once the local time of
	// day reaches it. Zero disables the rule.
	SameDayCutoff time.Duration
	// HorizonDays limits how far ahead a slot may be booked. Zero is unlimited.
	HorizonDays int
}

// PolicyFromConfig converts the finalized schedule section.
func PolicyFromConfig(cfg *config.ScheduleConfig) Policy {
	p := Policy{
		Location:      cfg.Location,
		Open:          cfg.OpenOffset,
		Close:         cfg.CloseOffset,
		Slot:          cfg.Slot,
		SameDayCutoff: cfg.Cutoff,
		HorizonDays:   cfg.HorizonDays,
		CategorySlot:  make(map[model.Category]time.Duration, len(cfg.CategorySlotMinutes)),
	}
	for c := range cfg.CategorySlotMinutes {
		cat := model.Category(c)
		p.CategorySlot[cat] = cfg.SlotFor(c)
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return p
}

// DefaultPolicy is 08:00-23:00 in 90 minute slots, UTC.
func DefaultPolicy() Policy {
	return Policy{
		Location:      time.UTC,
		Open:          8 * time.Hour,
		Close:         23 * time.Hour,
		Slot:          90 * time.Minute,
		SameDayCutoff: 23 * time.Hour,
	}
}

// SlotFor returns the slot length of a category.
func (p Policy) SlotFor(category model.Category) time.Duration {
	if d, ok := p.CategorySlot[category]; ok {
		return d
	}
	return p.Slot
}

// SlotsPerResource is floor(window / slot).
func (p Policy) SlotsPerResource(category model.Category) int {
	return int((p.Close - p.Open) / p.SlotFor(category))
}

// Midnight returns the start of t's day in the schedule location.
func (p Policy) Midnight(t time.Time) time.Time {
	y, m, d := t.In(p.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.Location)
}

// Window returns the operating window of t's day. Open and Close are wall
// clock times, so the window stays put on days with a DST change.
func (p Policy) Window(t time.Time) (opens, closes time.Time) {
	return p.clock(t, p.Open), p.clock(t, p.Close)
}

// clock returns the time of t's day at which the local clock reads offset.
func (p Policy) clock(t time.Time, offset time.Duration) time.Time {
	y, m, d := t.In(p.Location).Date()
	return time.Date(y, m, d,
		int(offset/time.Hour), int(offset%time.Hour/time.Minute), int(offset%time.Minute/time.Second),
		0, p.Location)
}

// Slots enumerates the fixed slot starts of t's day. Boundaries are multiples
// of the slot length from the window start; a partial slot at the end is dropped.
func (p Policy) Slots(t time.Time, category model.Category) []time.Time {
	opens, closes := p.Window(t)
	slot := p.SlotFor(category)
	out := make([]time.Time, 0, p.SlotsPerResource(category))
	for start := opens; !start.Add(slot).After(closes); start = start.Add(slot) {
		out = append(out, start)
	}
	return out
}

// Within reports whether the slot starting at start fits in its day's window.
func (p Policy) Within(start time.Time, category model.Category) bool {
	opens, closes := p.Window(start)
	return !start.Before(opens) && !start.Add(p.SlotFor(category)).After(closes)
}

// Bookable applies the time policy: no slot in the past, none of today's once
// the same-day cutoff has passed, none beyond the horizon.
func (p Policy) Bookable(start, now time.Time) bool {
	if start.Before(now) {
		return false
	}
	today := p.Midnight(now)
	slotDay := p.Midnight(start)
	if p.SameDayCutoff > 0 && slotDay.Equal(today) && !now.Before(p.clock(now, p.SameDayCutoff)) {
		return false
	}
	if p.HorizonDays > 0 && slotDay.After(today.AddDate(0, 0, p.HorizonDays)) {
		return false
	}
	return true
}
