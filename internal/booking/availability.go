package booking

import (
	"time"

	"github.com/hackgods/clinic-booking/internal/scheduling"
	"github.com/hackgods/clinic-booking/internal/validation"
)

// filterSlots drops slots whose start equals an active booking's start.
// With overlapAware it also drops slots that intersect any booking's
// [time, time+duration) window.
func filterSlots(slots []scheduling.Slot, booked []BookedTime, overlapAware bool) []scheduling.Slot {
	taken := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		taken[b.Time] = struct{}{}
	}

	out := make([]scheduling.Slot, 0, len(slots))
	for _, slot := range slots {
		if _, ok := taken[slot.Time]; ok {
			continue
		}
		if overlapAware && overlapsAny(slot, booked) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

func overlapsAny(slot scheduling.Slot, booked []BookedTime) bool {
	start, ok := minutes(slot.Time)
	if !ok {
		return false
	}
	end := start + max(slot.Duration, 1)

	for _, b := range booked {
		bStart, ok := minutes(b.Time)
		if !ok {
			continue
		}
		bEnd := bStart + max(b.Duration, 1)
		if start < bEnd && bStart < end {
			return true
		}
	}
	return false
}

func minutes(clock string) (int, bool) {
	t, err := time.Parse(validation.ClockLayout, clock)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
