package store

import (
	"errors"
	"testing"
	"time"

	"bcafe/restaurant-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() BookingPolicy {
	return BookingPolicy{
		OpenMinute:  10 * 60,
		CloseMinute: 22 * 60,
		Ceilings:    map[int]int{2: 7, 4: 10, 8: 2, 10: 1},
	}
}

func bookingInput(date, clock string, duration int) CreateReservationInput {
	return CreateReservationInput{
		FullName:       "Sara Ahmadi",
		PhoneNumber:    "09121234567",
		Date:           date,
		Time:           clock,
		NumberOfGuests: 4,
		TableType:      4,
		Duration:       duration,
		Type:           models.ReservationTypeNormal,
	}
}

func approvedReservation(date, clock string, duration int) models.Reservation {
	return models.Reservation{
		ReservationID: "existing",
		Date:          date,
		Time:          clock,
		Duration:      duration,
		TableType:     4,
		Approved:      true,
	}
}

func TestValidateBookingOverlap(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 4}
	existing := []models.Reservation{approvedReservation("2026-05-02", "19:00", 90)}

	// 20:00 starts inside the approved 19:00-20:30 block.
	err := ValidateBooking(bookingInput("2026-05-02", "20:00", 60), table, existing, 0, now, testPolicy())
	assert.ErrorIs(t, err, ErrTimeSlotTaken)

	// 20:30 touches the boundary of the half-open interval and is fine.
	err = ValidateBooking(bookingInput("2026-05-02", "20:30", 60), table, existing, 0, now, testPolicy())
	assert.NoError(t, err)
}

func TestValidateBookingServiceHours(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 4}

	err := ValidateBooking(bookingInput("2026-05-02", "22:00", 60), table, nil, 0, now, testPolicy())
	assert.NoError(t, err, "closing-time start is inside the inclusive window")

	err = ValidateBooking(bookingInput("2026-05-02", "22:30", 60), table, nil, 0, now, testPolicy())
	var validation ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "time", validation.Field)

	err = ValidateBooking(bookingInput("2026-05-02", "09:59", 60), table, nil, 0, now, testPolicy())
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "time", validation.Field)

	err = ValidateBooking(bookingInput("2026-05-02", "10:00", 60), table, nil, 0, now, testPolicy())
	assert.NoError(t, err)
}

func TestValidateBookingPartySize(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 4}

	input := bookingInput("2026-05-02", "18:00", 60)
	input.NumberOfGuests = 6

	err := ValidateBooking(input, table, nil, 0, now, testPolicy())
	var validation ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "number_of_guests", validation.Field)
}

func TestValidateBookingPastStart(t *testing.T) {
	now := time.Date(2026, 5, 2, 19, 30, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 4}

	err := ValidateBooking(bookingInput("2026-05-02", "19:00", 60), table, nil, 0, now, testPolicy())
	var validation ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "date", validation.Field)
}

func TestValidateBookingBirthdayExtras(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 4}

	input := bookingInput("2026-05-02", "18:00", 60)
	input.Type = models.ReservationTypeBirthday

	err := ValidateBooking(input, table, nil, 0, now, testPolicy())
	var validation ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "reservation_type", validation.Field)

	input.BirthdayCake = true
	assert.NoError(t, ValidateBooking(input, table, nil, 0, now, testPolicy()))
}

func TestValidateBookingCeiling(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 10}

	input := bookingInput("2026-05-02", "18:00", 60)
	input.TableType = 10
	input.NumberOfGuests = 9

	// Only one ten-seat table exists, and its slot is already taken.
	err := ValidateBooking(input, table, nil, 1, now, testPolicy())
	assert.ErrorIs(t, err, ErrCeilingReached)

	err = ValidateBooking(input, table, nil, 0, now, testPolicy())
	assert.NoError(t, err)
}

func TestValidateBookingCeilingKeyedByRequestedClass(t *testing.T) {
	// The ceiling counts the requested class, so the limit lookup has to use
	// it too, even when the resolved table's capacity is a different class.
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 4}

	input := bookingInput("2026-05-02", "18:00", 60)
	input.TableType = 10

	err := ValidateBooking(input, table, nil, 1, now, testPolicy())
	assert.ErrorIs(t, err, ErrCeilingReached)
}

func TestValidateBookingRuleOrder(t *testing.T) {
	// An out-of-hours request that also violates capacity and ceiling must be
	// reported as out-of-hours: checks run in a fixed order.
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	table := models.Table{TableID: "t1", Number: 1, Capacity: 2}

	input := bookingInput("2026-05-02", "23:00", 60)
	input.NumberOfGuests = 8

	err := ValidateBooking(input, table, nil, 99, now, testPolicy())
	var validation ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "time", validation.Field)
}

func TestRevalidateApproval(t *testing.T) {
	candidate := models.Reservation{
		ReservationID: "pending",
		Date:          "2026-05-02",
		Time:          "19:00",
		Duration:      90,
		TableType:     4,
	}

	conflict := approvedReservation("2026-05-02", "19:30", 60)
	err := RevalidateApproval(candidate, []models.Reservation{conflict}, 0, testPolicy())
	assert.ErrorIs(t, err, ErrTimeSlotTaken)

	// The candidate's own row is skipped when it shows up in the approved set.
	self := candidate
	self.Approved = true
	err = RevalidateApproval(candidate, []models.Reservation{self}, 0, testPolicy())
	assert.NoError(t, err)

	err = RevalidateApproval(candidate, nil, 10, testPolicy())
	assert.ErrorIs(t, err, ErrCeilingReached)
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 5, 2, 19, 0, 0, 0, time.UTC)
	at := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"identical", at(0), at(60), at(0), at(60), true},
		{"contained", at(0), at(90), at(30), at(60), true},
		{"partial", at(0), at(60), at(30), at(90), true},
		{"back to back", at(0), at(60), at(60), at(120), false},
		{"disjoint", at(0), at(60), at(90), at(150), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
			assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd), "overlap must be symmetric")
		})
	}
}

func TestMinuteOfDay(t *testing.T) {
	minute, ok := MinuteOfDay("10:30")
	require.True(t, ok)
	assert.Equal(t, 630, minute)

	_, ok = MinuteOfDay("25:00")
	assert.False(t, ok)
	_, ok = MinuteOfDay("")
	assert.False(t, ok)
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := InsufficientStockError{MenuItemID: "m1", Name: "Espresso"}
	assert.Equal(t, "not enough stock for Espresso", err.Error())
	assert.False(t, errors.Is(err, ErrMenuItemNotFound))
}
