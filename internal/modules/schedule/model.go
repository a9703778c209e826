// README: Pickup slot scheduling types.
package schedule

import "time"

// TimeSlot is a bookable pickup window. Computed on demand, never stored.
type TimeSlot struct {
	Start             time.Time
	End               time.Time
	AvailableCapacity int
}

// Shift is the slice of a courier's roster the scheduler needs: shift
// coverage expressed as hours of day, and hourly pickup throughput.
type Shift struct {
	StartHour         int
	EndHour           int
	MaxPickupsPerHour int
}

// Rules are the business-hour knobs, normally sourced from config.
type Rules struct {
	BusinessHoursStart int
	BusinessHoursEnd   int
	CutoffBuffer       time.Duration
	BookingBuffer      time.Duration
	DaysAhead          int
}
