package schedule

import (
	"testing"
	"time"

	"spoke/internal/modules/pricing"
)

func testRules() Rules {
	return Rules{
		BusinessHoursStart: 8,
		BusinessHoursEnd:   20,
		CutoffBuffer:       90 * time.Minute,
		BookingBuffer:      30 * time.Minute,
		DaysAhead:          2,
	}
}

func testShifts(n int) []Shift {
	shifts := make([]Shift, n)
	for i := range shifts {
		shifts[i] = Shift{StartHour: 8, EndHour: 20, MaxPickupsPerHour: 3}
	}
	return shifts
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 27, hour, minute, 0, 0, time.UTC)
}

func TestSlotsWithinBusinessHours(t *testing.T) {
	slots := EnumerateSlots(at(10, 0), testShifts(3), nil, testRules())
	if len(slots) == 0 {
		t.Fatal("expected slots at mid-morning")
	}
	for _, s := range slots {
		if s.Start.Hour() < 8 || s.Start.Hour() >= 20 {
			t.Fatalf("slot %v outside business hours", s.Start)
		}
	}
}

func TestNoSlotBeforeBookingBuffer(t *testing.T) {
	now := at(10, 45)
	slots := EnumerateSlots(now, testShifts(3), nil, testRules())
	earliest := now.Add(30 * time.Minute)
	for _, s := range slots {
		if s.Start.Before(earliest) {
			t.Fatalf("slot %v inside 30-minute booking buffer of %v", s.Start, now)
		}
	}
	// 11:00 is only 15 minutes away; the first today slot must be 12:00.
	if slots[0].Start.Hour() != 12 {
		t.Fatalf("first slot at %v, want 12:00", slots[0].Start)
	}
}

func TestCurrentDayCutoff(t *testing.T) {
	// Cutoff is 20:00 − 90m = 18:30: today windows at or after it are gone.
	slots := EnumerateSlots(at(9, 0), testShifts(3), nil, testRules())
	for _, s := range slots {
		if s.Start.Day() == 27 && s.Start.Hour() >= 19 {
			t.Fatalf("today slot %v at/after cutoff", s.Start)
		}
	}

	// After the cutoff, today yields nothing; tomorrow still has slots.
	slots = EnumerateSlots(at(18, 31), testShifts(3), nil, testRules())
	var todayCount, tomorrowCount int
	for _, s := range slots {
		switch s.Start.Day() {
		case 27:
			todayCount++
		case 28:
			tomorrowCount++
		}
	}
	if todayCount != 0 {
		t.Fatalf("got %d today slots after cutoff, want 0", todayCount)
	}
	if tomorrowCount == 0 {
		t.Fatal("expected next-day slots after cutoff")
	}
}

func TestFullyBookedHourOmitted(t *testing.T) {
	now := at(10, 0)
	booked := map[int64]int{
		at(14, 0).Unix(): 9, // 3 shifts x 3/hr fully consumed
		at(15, 0).Unix(): 8, // one left
	}
	slots := EnumerateSlots(now, testShifts(3), booked, testRules())
	for _, s := range slots {
		if s.Start.Equal(at(14, 0)) {
			t.Fatalf("fully booked slot %v returned", s.Start)
		}
		if s.Start.Equal(at(15, 0)) && s.AvailableCapacity != 1 {
			t.Fatalf("15:00 capacity = %d, want 1", s.AvailableCapacity)
		}
	}
}

func TestBookedCountsMatchAcrossLocations(t *testing.T) {
	// Booked counts loaded in one zone must still suppress slots enumerated
	// in another; the Unix-second key makes equal instants collide.
	ist := time.FixedZone("IST", 5*3600+1800)
	booked := map[int64]int{
		at(14, 0).In(ist).Unix(): 9,
	}
	slots := EnumerateSlots(at(10, 0), testShifts(3), booked, testRules())
	for _, s := range slots {
		if s.Start.Equal(at(14, 0)) {
			t.Fatalf("slot %v returned despite bookings recorded in another zone", s.Start)
		}
	}
}

func TestHourCapacityShiftCoverage(t *testing.T) {
	shifts := []Shift{
		{StartHour: 8, EndHour: 14, MaxPickupsPerHour: 3},
		{StartHour: 12, EndHour: 20, MaxPickupsPerHour: 2},
	}
	cases := []struct {
		hour, want int
	}{
		{7, 0},
		{8, 3},
		{12, 5},
		{13, 5},
		{14, 2},
		{19, 2},
		{20, 0},
	}
	for _, tc := range cases {
		if got := HourCapacity(tc.hour, shifts); got != tc.want {
			t.Errorf("HourCapacity(%d) = %d, want %d", tc.hour, got, tc.want)
		}
	}
}

func TestTimeFactorFor(t *testing.T) {
	now := at(10, 0)
	cases := []struct {
		name    string
		express bool
		slot    time.Time
		want    pricing.TimeFactor
	}{
		{"express wins", true, at(11, 0), pricing.TimeExpress},
		{"tomorrow is next day", false, at(11, 0).AddDate(0, 0, 1), pricing.TimeNextDay},
		{"within four hours is same day", false, at(13, 0), pricing.TimeSameDay},
		{"later today is standard", false, at(16, 0), pricing.TimeStandard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TimeFactorFor(tc.express, tc.slot, now); got != tc.want {
				t.Fatalf("TimeFactorFor = %s, want %s", got, tc.want)
			}
		})
	}
}
