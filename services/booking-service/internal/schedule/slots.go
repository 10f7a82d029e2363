package schedule

import (
	"sort"
	"time"
)

// HorizonDays is how far ahead slots are offered.
const HorizonDays = 14

// MinLead is the minimum gap between "now" and the earliest bookable slot,
// so creators never get ambushed by a last-minute booking.
const MinLead = time.Hour

// TemplateSlot is one entry of a creator's weekly recurring availability:
// a weekday plus a time of day. All times are UTC.
type TemplateSlot struct {
	DayOfWeek int `json:"dayOfWeek"` // 0=Sunday .. 6=Saturday
	Hour      int `json:"hour"`      // 0..23
	Minute    int `json:"minute"`    // 0 or 30
}

func (s TemplateSlot) Valid() bool {
	return s.DayOfWeek >= 0 && s.DayOfWeek <= 6 &&
		s.Hour >= 0 && s.Hour <= 23 &&
		(s.Minute == 0 || s.Minute == 30)
}

// Slot is a concrete bookable start time with display labels.
type Slot struct {
	StartTime time.Time
	DateLabel string // e.g. "Mon 2 Jan"
	TimeLabel string // e.g. "14:00"
	DayOfWeek int
}

// UpcomingSlots expands a weekly template into concrete start times over the
// next HorizonDays calendar days (today inclusive), dropping anything earlier
// than now+MinLead and anything in the booked set. Overlapping template
// entries are de-duplicated by timestamp so a slot is never offered twice.
// The result is in chronological order.
func UpcomingSlots(now time.Time, template []TemplateSlot, booked []time.Time) []Slot {
	if len(template) == 0 {
		return nil
	}

	now = now.UTC()
	earliest := now.Add(MinLead)

	taken := make(map[int64]struct{}, len(booked))
	for _, t := range booked {
		taken[t.UTC().Unix()] = struct{}{}
	}

	seen := map[int64]struct{}{}
	var slots []Slot
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for offset := 0; offset < HorizonDays; offset++ {
		day := dayStart.AddDate(0, 0, offset)
		weekday := int(day.Weekday())
		for _, ts := range template {
			if ts.DayOfWeek != weekday || !ts.Valid() {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), ts.Hour, ts.Minute, 0, 0, time.UTC)
			if start.Before(earliest) {
				continue
			}
			key := start.Unix()
			if _, ok := taken[key]; ok {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			slots = append(slots, Slot{
				StartTime: start,
				DateLabel: start.Format("Mon 2 Jan"),
				TimeLabel: start.Format("15:04"),
				DayOfWeek: weekday,
			})
		}
	}

	// Template entries within a day may be unsorted.
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots
}
