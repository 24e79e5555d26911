package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pigeon/internal/campaign"
	"pigeon/internal/constants"
	pkgerrors "pigeon/pkg/errors"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// DeriveRecurrence turns a schedule's frequency descriptor into a
// five-field cron expression. It is a pure function: same schedule in,
// same expression out.
//
// Defaults are deliberate constants, not silent fallbacks: a schedule
// without a send time fires at constants.DefaultSendTime, and a weekly
// schedule without weekdays fires on constants.DefaultWeekday.
func DeriveRecurrence(s campaign.Schedule) (string, error) {
	if s.Frequency == nil {
		return "", pkgerrors.ErrScheduling.WithMessage("schedule has no frequency descriptor")
	}

	hour, minute, err := parseSendTime(s.SendTime)
	if err != nil {
		return "", err
	}

	var expr string
	switch s.Frequency.Type {
	case campaign.FrequencyDaily:
		if s.Frequency.Interval > 1 {
			expr = fmt.Sprintf("%d %d */%d * *", minute, hour, s.Frequency.Interval)
		} else {
			expr = fmt.Sprintf("%d %d * * *", minute, hour)
		}

	case campaign.FrequencyWeekly:
		days := s.Frequency.DaysOfWeek
		if len(days) == 0 {
			days = []time.Weekday{constants.DefaultWeekday}
		}
		expr = fmt.Sprintf("%d %d * * %s", minute, hour, weekdayList(days))

	case campaign.FrequencyMonthly:
		day := s.Frequency.DayOfMonth
		if day < 1 || day > 31 {
			day = 1
		}
		expr = fmt.Sprintf("%d %d %d * *", minute, hour, day)

	case campaign.FrequencyCustom:
		expr = s.Frequency.Expression

	default:
		return "", pkgerrors.ErrScheduling.
			WithMessage("unknown frequency type: %s", s.Frequency.Type)
	}

	if _, err := cronParser.Parse(expr); err != nil {
		return "", pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("invalid recurrence expression %q: %v", expr, err)
	}
	return expr, nil
}

// NextRun computes the first firing of expr at or after from, in the
// schedule's timezone.
func NextRun(expr, timezone string, from time.Time) (time.Time, error) {
	spec, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("invalid recurrence expression %q: %v", expr, err)
	}

	loc, err := loadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return spec.Next(from.In(loc)), nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		timezone = constants.DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, pkgerrors.ErrScheduling.WithCause(err).
			WithMessage("unknown timezone: %s", timezone)
	}
	return loc, nil
}

// parseSendTime parses an "HH:MM" send time, falling back to the
// documented default when empty.
func parseSendTime(sendTime string) (hour, minute int, err error) {
	if sendTime == "" {
		sendTime = constants.DefaultSendTime
	}

	parts := strings.SplitN(sendTime, ":", 2)
	if len(parts) != 2 {
		return 0, 0, pkgerrors.ErrScheduling.WithMessage("invalid send time: %s", sendTime)
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, pkgerrors.ErrScheduling.WithMessage("invalid send time: %s", sendTime)
	}
	return hour, minute, nil
}

func weekdayList(days []time.Weekday) string {
	nums := make([]int, 0, len(days))
	seen := make(map[int]bool)
	for _, d := range days {
		n := int(d)
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)

	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
