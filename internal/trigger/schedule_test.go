package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEverySchedule(t *testing.T) {
	s := Every(10 * time.Minute)
	from := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, from.Add(10*time.Minute), s.Next(from))
}

func TestDailyScheduleRollsToTomorrowWhenTimePassed(t *testing.T) {
	s := Daily(9, 30)
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) // after 9:30 already
	next := s.Next(from)
	require.Equal(t, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC), next)
}

func TestDailyScheduleSameDayWhenTimeHasNotPassed(t *testing.T) {
	s := Daily(9, 30)
	from := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	next := s.Next(from)
	require.Equal(t, time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC), next)
}

func TestWeeklyScheduleAdvancesToTargetDay(t *testing.T) {
	s := Weekly(time.Friday, 8, 0)
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // a Monday
	next := s.Next(from)
	require.Equal(t, time.Friday, next.Weekday())
	require.True(t, next.After(from))
}

func TestCronSchedule(t *testing.T) {
	s := Cron("0 * * * *") // top of every hour
	from := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	next := s.Next(from)
	require.Equal(t, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC), next)
}

func TestCronInvalidExpressionPanics(t *testing.T) {
	require.Panics(t, func() { Cron("not a cron expression") })
}
