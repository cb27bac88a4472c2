package finance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultWindow is the estimation lookback used when none is given.
const DefaultWindow = "1y"

// ParseWindow turns a lookback such as 30d, 6w, 6m, 2y or an explicit
// YYYY-MM-DD:YYYY-MM-DD range into [start, end) dates. Relative windows end
// after today so the latest bar is included.
func ParseWindow(window string, now time.Time) (time.Time, time.Time, error) {
	window = strings.ToLower(strings.TrimSpace(window))
	if window == "" {
		window = DefaultWindow
	}

	if from, to, ok := strings.Cut(window, ":"); ok {
		start, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid window start %q: %w", from, err)
		}
		end, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid window end %q: %w", to, err)
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("window end %s is not after start %s", to, from)
		}
		return start, end, nil
	}

	if len(window) < 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window format: %s (use format like 30d, 6w, 6m, 1y)", window)
	}
	n, err := strconv.Atoi(window[:len(window)-1])
	if err != nil || n <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window format: %s (use format like 30d, 6w, 6m, 1y)", window)
	}

	end := dayOf(now).AddDate(0, 0, 1)
	today := dayOf(now)
	var start time.Time
	switch window[len(window)-1] {
	case 'd':
		start = today.AddDate(0, 0, -n)
	case 'w':
		start = today.AddDate(0, 0, -7*n)
	case 'm':
		start = today.AddDate(0, -n, 0)
	case 'y':
		start = today.AddDate(-n, 0, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window format: %s (use format like 30d, 6w, 6m, 1y)", window)
	}
	return start, end, nil
}
