// README: Pickup slot enumeration and the pricing time-factor classifier.
package schedule

import (
	"context"
	"time"

	"spoke/internal/modules/pricing"
)

// ShiftSource yields the shifts of couriers able to take pickups.
type ShiftSource interface {
	PickupShifts(ctx context.Context) ([]Shift, error)
}

// BookingSource yields already-booked pickup counts keyed by the slot start's
// Unix seconds, immune to location and monotonic-clock mismatches.
type BookingSource interface {
	BookedPickups(ctx context.Context, from, to time.Time) (map[int64]int, error)
}

type Service struct {
	rules    Rules
	shifts   ShiftSource
	bookings BookingSource
}

func NewService(rules Rules, shifts ShiftSource, bookings BookingSource) *Service {
	return &Service{rules: rules, shifts: shifts, bookings: bookings}
}

// AvailableSlots enumerates bookable windows from now through the horizon.
func (s *Service) AvailableSlots(ctx context.Context, now time.Time) ([]TimeSlot, error) {
	shifts, err := s.shifts.PickupShifts(ctx)
	if err != nil {
		return nil, err
	}
	horizon := now.AddDate(0, 0, s.rules.DaysAhead+1)
	booked, err := s.bookings.BookedPickups(ctx, now, horizon)
	if err != nil {
		return nil, err
	}
	return EnumerateSlots(now, shifts, booked, s.rules), nil
}

// EnumerateSlots is the pure core of the scheduler. Hourly windows within
// business hours are produced for today plus DaysAhead days, excluding
// windows already past, windows inside the booking buffer, current-day
// windows at or after the cutoff (close − cutoff buffer), and windows whose
// remaining capacity is zero.
func EnumerateSlots(now time.Time, shifts []Shift, booked map[int64]int, rules Rules) []TimeSlot {
	var slots []TimeSlot

	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	cutoffOffset := time.Duration(rules.BusinessHoursEnd)*time.Hour - rules.CutoffBuffer

	for dayOffset := 0; dayOffset <= rules.DaysAhead; dayOffset++ {
		date := today.AddDate(0, 0, dayOffset)
		cutoff := date.Add(cutoffOffset)

		for hour := rules.BusinessHoursStart; hour < rules.BusinessHoursEnd; hour++ {
			start := date.Add(time.Duration(hour) * time.Hour)
			end := start.Add(time.Hour)

			if start.Before(now) {
				continue
			}
			if start.Before(now.Add(rules.BookingBuffer)) {
				continue
			}
			if dayOffset == 0 && !start.Before(cutoff) {
				continue
			}

			available := HourCapacity(hour, shifts) - booked[start.Unix()]
			if available <= 0 {
				continue
			}

			slots = append(slots, TimeSlot{Start: start, End: end, AvailableCapacity: available})
		}
	}
	return slots
}

// HourCapacity sums the hourly pickup throughput of every shift covering the
// given hour of day.
func HourCapacity(hour int, shifts []Shift) int {
	capacity := 0
	for _, sh := range shifts {
		if sh.StartHour <= hour && hour < sh.EndHour {
			perHour := sh.MaxPickupsPerHour
			if perHour <= 0 {
				perHour = 3
			}
			capacity += perHour
		}
	}
	return capacity
}

// TimeFactorFor classifies a booked slot into the pricing time-factor bucket.
func TimeFactorFor(isExpress bool, slot, now time.Time) pricing.TimeFactor {
	if isExpress {
		return pricing.TimeExpress
	}

	sy, sm, sd := slot.Date()
	ny, nm, nd := now.Date()
	if sy > ny || (sy == ny && (sm > nm || (sm == nm && sd > nd))) {
		return pricing.TimeNextDay
	}

	if slot.Sub(now) <= 4*time.Hour {
		return pricing.TimeSameDay
	}
	return pricing.TimeStandard
}
