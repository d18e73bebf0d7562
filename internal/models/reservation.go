package models

import "time"

// Table capacities come as a fixed set of classes; the same values shape
// reservation requests.
var TableCapacities = []int{2, 4, 8, 10}

// Reservation durations in minutes.
var Durations = []int{60, 90, 120, 150}

const (
	ReservationTypeNormal   = "normal"
	ReservationTypeBirthday = "birthday"
)

type Table struct {
	TableID  string `json:"table_id"`
	Number   int    `json:"number"`
	Capacity int    `json:"capacity"`
}

type Reservation struct {
	ReservationID  string    `json:"reservation_id"`
	FullName       string    `json:"full_name"`
	PhoneNumber    string    `json:"phone_number"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	NumberOfGuests int       `json:"number_of_guests"`
	TableType      int       `json:"table_type"`
	Duration       int       `json:"duration"`
	Type           string    `json:"reservation_type"`
	BirthdayDesign bool      `json:"birthday_design"`
	BirthdayCake   bool      `json:"birthday_cake"`
	ExtraNotes     string    `json:"extra_notes,omitempty"`
	TableID        string    `json:"table_id"`
	Approved       bool      `json:"approved"`
	CreatedAt      time.Time `json:"created_at"`
}

// StartsAt resolves the reservation's date and time fields into one instant.
func (r Reservation) StartsAt() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", r.Date+" "+r.Time)
}

// EndsAt is StartsAt plus the duration; the occupied interval is half-open,
// [StartsAt, EndsAt).
func (r Reservation) EndsAt() (time.Time, error) {
	start, err := r.StartsAt()
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(r.Duration) * time.Minute), nil
}

func ValidCapacity(capacity int) bool {
	for _, c := range TableCapacities {
		if c == capacity {
			return true
		}
	}
	return false
}

func ValidDuration(minutes int) bool {
	for _, d := range Durations {
		if d == minutes {
			return true
		}
	}
	return false
}
