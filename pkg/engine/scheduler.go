package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Callback is a scheduled strategy function.
type Callback func(ctx context.Context, h *Handle) error

type slot uint8

const (
	slotBeforeOpen slot = iota
	slotIntraday
	slotAfterClose
)

// At is the daily moment a RunDaily callback fires.
type At struct {
	slot   slot
	offset time.Duration
}

func BeforeOpen() At { return At{slot: slotBeforeOpen} }
func AfterClose() At { return At{slot: slotAfterClose} }

// AtTime fires on the first bar of the day stamped at or after hour:minute.
func AtTime(hour, minute int) At {
	return At{slot: slotIntraday, offset: time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute}
}

// ParseAt accepts "before_open", "after_close" or a "15:04" clock time.
func ParseAt(s string) (At, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "before_open", "open_auction", "before_trading":
		return BeforeOpen(), nil
	case "after_close", "after_trading":
		return AfterClose(), nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return At{}, fmt.Errorf("invalid schedule time %q: %w", s, err)
	}
	return AtTime(t.Hour(), t.Minute()), nil
}

func (a At) String() string {
	switch a.slot {
	case slotBeforeOpen:
		return "before_open"
	case slotAfterClose:
		return "after_close"
	}
	return fmt.Sprintf("%02d:%02d", int(a.offset.Hours()), int(a.offset.Minutes())%60)
}

type dailyJob struct {
	name    string
	at      At
	fn      Callback
	firedOn time.Time
}

type intervalJob struct {
	name  string
	every int
	fn    Callback
}

// scheduler runs callbacks in registration order.
type scheduler struct {
	daily    []*dailyJob
	interval []*intervalJob
}

func (s *scheduler) runDaily(ctx context.Context, h *Handle, sl slot) error {
	for _, j := range s.daily {
		if j.at.slot != sl {
			continue
		}
		if err := j.fn(ctx, h); err != nil {
			return fmt.Errorf("scheduled %q at %s: %w", j.name, j.at, err)
		}
	}
	return nil
}

// runIntraday fires the clock time callbacks reached by now, once per day.
func (s *scheduler) runIntraday(ctx context.Context, h *Handle, day, now time.Time) error {
	for _, j := range s.daily {
		if j.at.slot != slotIntraday || j.firedOn.Equal(day) || now.Before(day.Add(j.at.offset)) {
			continue
		}
		j.firedOn = day
		if err := j.fn(ctx, h); err != nil {
			return fmt.Errorf("scheduled %q at %s: %w", j.name, j.at, err)
		}
	}
	return nil
}

// runInterval fires every job whose period divides barIndex, counted from 1.
func (s *scheduler) runInterval(ctx context.Context, h *Handle, barIndex int) error {
	for _, j := range s.interval {
		if barIndex%j.every != 0 {
			continue
		}
		if err := j.fn(ctx, h); err != nil {
			return fmt.Errorf("scheduled %q every %d bars: %w", j.name, j.every, err)
		}
	}
	return nil
}
