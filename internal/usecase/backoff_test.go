package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRetryAtFollowsSchedule(t *testing.T) {
	now := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(1*time.Hour), NextRetryAt(1, now))
	assert.Equal(t, now.Add(4*time.Hour), NextRetryAt(2, now))
	assert.Equal(t, now.Add(24*time.Hour), NextRetryAt(3, now))
	assert.Equal(t, now.Add(24*time.Hour), NextRetryAt(4, now))
	assert.Equal(t, now.Add(24*time.Hour), NextRetryAt(5, now))
}

func TestNextRetryAtClampsBeyondSchedule(t *testing.T) {
	now := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(24*time.Hour), NextRetryAt(9, now))
	assert.Equal(t, now.Add(1*time.Hour), NextRetryAt(0, now)) // below 1 treated as 1
}

func TestBackoffMonotonic(t *testing.T) {
	now := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	prev := NextRetryAt(1, now)
	for attempt := 2; attempt <= 8; attempt++ {
		next := NextRetryAt(attempt, now)
		assert.False(t, next.Before(prev), "attempt %d scheduled earlier than attempt %d", attempt, attempt-1)
		prev = next
	}
}
