package store

import (
	"time"

	"bcafe/restaurant-service/internal/models"
)

// BookingPolicy carries the knobs the scheduler checks requests against.
// The service-hour window and per-class ceilings used to be hard-coded in the
// admin tooling; they arrive here from config.
type BookingPolicy struct {
	OpenMinute  int         // earliest start, minutes from midnight, inclusive
	CloseMinute int         // latest start, minutes from midnight, inclusive
	Ceilings    map[int]int // approved reservations allowed per capacity class and slot
}

// Ceiling returns the per-slot limit for a capacity class. Classes without an
// explicit entry are unlimited.
func (p BookingPolicy) Ceiling(capacity int) int {
	limit, ok := p.Ceilings[capacity]
	if !ok {
		return 0
	}
	return limit
}

// AllowsStart reports whether an "HH:MM" start time falls inside the
// service-hour window, bounds included.
func (p BookingPolicy) AllowsStart(clock string) bool {
	minute, ok := MinuteOfDay(clock)
	if !ok {
		return false
	}
	return minute >= p.OpenMinute && minute <= p.CloseMinute
}

// Overlaps applies the half-open interval intersection test to
// [aStart, aEnd) and [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// MinuteOfDay parses an "HH:MM" clock value into minutes from midnight.
func MinuteOfDay(clock string) (int, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// ValidateBooking runs the scheduler's ordered checks against a resolved
// table, failing fast on the first violated rule:
//
//  1. start time inside the service-hour window
//  2. (table resolution happens in the caller)
//  3. party fits the table
//  4. no overlap with an approved reservation on the same table and date
//  5. start not in the past
//  6. birthday bookings carry at least one birthday extra
//  7. approved count for the (class, date, time) slot below the class ceiling
//
// sameTableApproved holds the approved reservations already on the requested
// table and date; classSlotCount is how many approved reservations share the
// requested table type, date and time across all tables.
func ValidateBooking(input CreateReservationInput, table models.Table, sameTableApproved []models.Reservation, classSlotCount int, now time.Time, policy BookingPolicy) error {
	startMinute, ok := MinuteOfDay(input.Time)
	if !ok {
		return ValidationError{Field: "time", Message: "time must be HH:MM"}
	}
	if startMinute < policy.OpenMinute || startMinute > policy.CloseMinute {
		return ValidationError{Field: "time", Message: "time is outside service hours"}
	}

	if input.NumberOfGuests > table.Capacity {
		return ValidationError{Field: "number_of_guests", Message: "party does not fit the selected table"}
	}

	requested := models.Reservation{Date: input.Date, Time: input.Time, Duration: input.Duration}
	start, err := requested.StartsAt()
	if err != nil {
		return ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
	}
	end := start.Add(time.Duration(input.Duration) * time.Minute)

	for _, other := range sameTableApproved {
		otherStart, err := other.StartsAt()
		if err != nil {
			continue
		}
		otherEnd, err := other.EndsAt()
		if err != nil {
			continue
		}
		if Overlaps(start, end, otherStart, otherEnd) {
			return ErrTimeSlotTaken
		}
	}

	if start.Before(now) {
		return ValidationError{Field: "date", Message: "reservation start is in the past"}
	}

	if input.Type == models.ReservationTypeBirthday && !input.BirthdayDesign && !input.BirthdayCake {
		return ValidationError{Field: "reservation_type", Message: "birthday reservations need a decoration or a cake"}
	}

	if limit := policy.Ceiling(input.TableType); limit > 0 && classSlotCount >= limit {
		return ErrCeilingReached
	}

	return nil
}

// RevalidateApproval re-runs the conflict checks an approval must hold:
// no overlap against the other approved reservations on the table and the
// class ceiling not yet reached. Submission-time validation alone is not
// enough here, since two pending requests for the same slot both pass it.
func RevalidateApproval(candidate models.Reservation, otherApproved []models.Reservation, classSlotCount int, policy BookingPolicy) error {
	start, err := candidate.StartsAt()
	if err != nil {
		return ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
	}
	end := start.Add(time.Duration(candidate.Duration) * time.Minute)

	for _, other := range otherApproved {
		if other.ReservationID == candidate.ReservationID {
			continue
		}
		otherStart, err := other.StartsAt()
		if err != nil {
			continue
		}
		otherEnd, err := other.EndsAt()
		if err != nil {
			continue
		}
		if Overlaps(start, end, otherStart, otherEnd) {
			return ErrTimeSlotTaken
		}
	}

	if limit := policy.Ceiling(candidate.TableType); limit > 0 && classSlotCount >= limit {
		return ErrCeilingReached
	}

	return nil
}
