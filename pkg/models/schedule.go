package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Recurrence is the repetition pattern of a schedule trigger.
type Recurrence string

const (
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceCron    Recurrence = "cron"
)

var (
	// ErrInvalidSchedule is returned when a schedule configuration cannot be turned into a cron spec.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")

	cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// ScheduleConfig configures schedule triggers.
//
// Time is "HH:MM" in 24h format. Weekday is 0 (Sunday) to 6 and is used by
// weekly recurrences; DayOfMonth is 1-31 and used by monthly ones. Cron holds
// a standard 5-field expression when Recurrence is "cron".
type ScheduleConfig struct {
	Recurrence Recurrence `json:"recurrence"`
	Time       string     `json:"time,omitempty"`
	Weekday    int        `json:"weekday,omitempty"`
	DayOfMonth int        `json:"day_of_month,omitempty"`
	Cron       string     `json:"cron,omitempty"`
	BoardID    string     `json:"board_id,omitempty"`
}

func (ScheduleConfig) triggerConfig() {}

// CronSpec converts the recurrence into a validated 5-field cron expression.
func (c ScheduleConfig) CronSpec() (string, error) {
	var spec string

	switch c.Recurrence {
	case RecurrenceCron:
		spec = strings.TrimSpace(c.Cron)
		if spec == "" {
			return "", fmt.Errorf("%w: cron expression is required", ErrInvalidSchedule)
		}
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		hour, minute, err := parseTimeOfDay(c.Time)
		if err != nil {
			return "", err
		}

		switch c.Recurrence {
		case RecurrenceDaily:
			spec = fmt.Sprintf("%d %d * * *", minute, hour)
		case RecurrenceWeekly:
			if c.Weekday < 0 || c.Weekday > 6 {
				return "", fmt.Errorf("%w: weekday %d out of range", ErrInvalidSchedule, c.Weekday)
			}

			spec = fmt.Sprintf("%d %d * * %d", minute, hour, c.Weekday)
		default:
			day := c.DayOfMonth
			if day == 0 {
				day = 1
			}

			if day < 1 || day > 31 {
				return "", fmt.Errorf("%w: day of month %d out of range", ErrInvalidSchedule, c.DayOfMonth)
			}

			spec = fmt.Sprintf("%d %d %d * *", minute, hour, day)
		}
	default:
		return "", fmt.Errorf("%w: unknown recurrence %q", ErrInvalidSchedule, c.Recurrence)
	}

	if _, err := cronParser.Parse(spec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	return spec, nil
}

func parseTimeOfDay(value string) (int, int, error) {
	if value == "" {
		return 9, 0, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidSchedule, value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidSchedule, value)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidSchedule, value)
	}

	return hour, minute, nil
}
