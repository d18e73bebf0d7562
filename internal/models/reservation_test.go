package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationInterval(t *testing.T) {
	reservation := Reservation{Date: "2026-05-02", Time: "19:00", Duration: 90}

	start, err := reservation.StartsAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 19, 0, 0, 0, time.UTC), start)

	end, err := reservation.EndsAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 20, 30, 0, 0, time.UTC), end)

	_, err = Reservation{Date: "02-05-2026", Time: "19:00"}.StartsAt()
	assert.Error(t, err)
}

func TestValidCapacityAndDuration(t *testing.T) {
	for _, capacity := range TableCapacities {
		assert.True(t, ValidCapacity(capacity))
	}
	assert.False(t, ValidCapacity(6))
	assert.False(t, ValidCapacity(0))

	for _, duration := range Durations {
		assert.True(t, ValidDuration(duration))
	}
	assert.False(t, ValidDuration(45))
	assert.False(t, ValidDuration(0))
}
