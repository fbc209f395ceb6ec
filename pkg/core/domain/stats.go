package domain

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Window is a trailing time range used for windowed stats.
type Window string

const (
	Window1d  Window = "1d"
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"

	// PeriodAll selects lifetime figures in the dashboard rollup.
	PeriodAll Window = "all"
)

var windowDurations = map[Window]time.Duration{
	Window1d:  24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window30d: 30 * 24 * time.Hour,
	Window90d: 90 * 24 * time.Hour,
}

// ParseWindow accepts exactly 1d, 7d, 30d or 90d.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.TrimSpace(s))
	if _, ok := windowDurations[w]; !ok {
		return "", ErrInvalidWindow
	}
	return w, nil
}

// ParsePeriod is ParseWindow plus "all".
func ParsePeriod(s string) (Window, error) {
	if Window(strings.TrimSpace(s)) == PeriodAll {
		return PeriodAll, nil
	}
	return ParseWindow(s)
}

// Duration returns the window length, or 0 for PeriodAll.
func (w Window) Duration() time.Duration {
	return windowDurations[w]
}

// Since returns the inclusive lower bound of the window ending at now.
func (w Window) Since(now time.Time) time.Time {
	return now.Add(-w.Duration())
}

// LinkStats is a click/login/conversion triple, lifetime or windowed.
type LinkStats struct {
	LinkID         int64   `json:"link_id"`
	Window         Window  `json:"window,omitempty"`
	Clicks         int64   `json:"clicks"`
	Logins         int64   `json:"logins"`
	ConversionRate float64 `json:"conversion_rate"`
}

// DashboardTotals is the rollup across every link.
// ConversionRate is sum(logins)/sum(clicks), not an average of per-link rates.
type DashboardTotals struct {
	Period         Window  `json:"period"`
	TotalLinks     int64   `json:"total_links"`
	ActiveLinks    int64   `json:"active_links"`
	TotalClicks    int64   `json:"total_clicks"`
	TotalLogins    int64   `json:"total_logins"`
	ConversionRate float64 `json:"conversion_rate"`
}

// EventCursor marks the last event of a timeline page.
type EventCursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns the opaque form handed to API clients.
func (c EventCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a value produced by EventCursor.Encode.
func DecodeCursor(s string) (*EventCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &EventCursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
