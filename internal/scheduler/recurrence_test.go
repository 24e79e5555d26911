package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/campaign"
)

func TestDeriveRecurrenceDaily(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		SendTime:  "08:30",
		Frequency: &campaign.Frequency{Type: campaign.FrequencyDaily},
	})
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", expr)
}

func TestDeriveRecurrenceDailyWithInterval(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		SendTime:  "08:30",
		Frequency: &campaign.Frequency{Type: campaign.FrequencyDaily, Interval: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "30 8 */3 * *", expr)
}

func TestDeriveRecurrenceWeekly(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		SendTime: "09:00",
		Timezone: "America/New_York",
		Frequency: &campaign.Frequency{
			Type:       campaign.FrequencyWeekly,
			DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * 1,3,5", expr)
}

func TestDeriveRecurrenceWeeklyDefaultsToMonday(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		Frequency: &campaign.Frequency{Type: campaign.FrequencyWeekly},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * 1", expr)
}

func TestDeriveRecurrenceWeeklyDeduplicatesAndSortsDays(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		Frequency: &campaign.Frequency{
			Type:       campaign.FrequencyWeekly,
			DaysOfWeek: []time.Weekday{time.Friday, time.Monday, time.Friday},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * 1,5", expr)
}

func TestDeriveRecurrenceMonthly(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		SendTime:  "17:45",
		Frequency: &campaign.Frequency{Type: campaign.FrequencyMonthly, DayOfMonth: 15},
	})
	require.NoError(t, err)
	assert.Equal(t, "45 17 15 * *", expr)
}

func TestDeriveRecurrenceMonthlyDefaultsToFirst(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		Frequency: &campaign.Frequency{Type: campaign.FrequencyMonthly},
	})
	require.NoError(t, err)
	assert.Equal(t, "0 9 1 * *", expr)
}

func TestDeriveRecurrenceCustomPassesThrough(t *testing.T) {
	expr, err := DeriveRecurrence(campaign.Schedule{
		Frequency: &campaign.Frequency{Type: campaign.FrequencyCustom, Expression: "*/15 * * * *"},
	})
	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", expr)
}

func TestDeriveRecurrenceRejectsInvalidCustomExpression(t *testing.T) {
	_, err := DeriveRecurrence(campaign.Schedule{
		Frequency: &campaign.Frequency{Type: campaign.FrequencyCustom, Expression: "every tuesday"},
	})
	assert.Error(t, err)
}

func TestDeriveRecurrenceRejectsBadSendTime(t *testing.T) {
	for _, sendTime := range []string{"25:00", "09:99", "nine"} {
		_, err := DeriveRecurrence(campaign.Schedule{
			SendTime:  sendTime,
			Frequency: &campaign.Frequency{Type: campaign.FrequencyDaily},
		})
		assert.Error(t, err, "send time %q should be rejected", sendTime)
	}
}

func TestNextRunHonorsTimezone(t *testing.T) {
	// 2026-03-02 is a Monday. From Sunday noon UTC, the next weekly
	// Mon/Wed/Fri occurrence at 09:00 New York time is Monday 09:00
	// EST, which is 14:00 UTC.
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := NextRun("0 9 * * 1,3,5", "America/New_York", from)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), next.UTC())
}

func TestNextRunDefaultsToUTC(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := NextRun("0 9 * * *", "", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next.UTC())
}

func TestNextRunRejectsUnknownTimezone(t *testing.T) {
	_, err := NextRun("0 9 * * *", "Atlantis/Capital", time.Now())
	assert.Error(t, err)
}
