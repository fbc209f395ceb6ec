package domain

import "time"

type EventType string

const (
	EventClick EventType = "click"
	EventLogin EventType = "login"
)

// ClientMeta is the network and client information captured with an event.
// It is stored for display only.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// TrackingEvent is an append-only record of a click or a login on a link.
type TrackingEvent struct {
	ID             string    `json:"id"`
	LinkID         int64     `json:"link_id"`
	Type           EventType `json:"event_type"`
	CorrelationKey string    `json:"correlation_key,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	// Attributed is set on login events that matched an earlier click
	// with the same correlation key. Only attributed logins are counted.
	Attributed bool      `json:"attributed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Client is the parsed, human readable form of a user-agent string.
type Client struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Device  string `json:"device,omitempty"`
}

// EventView is a timeline entry annotated for display.
type EventView struct {
	TrackingEvent
	Actor  *Actor `json:"actor,omitempty"`
	Client Client `json:"client"`
}

// EventPage is one page of a link's timeline, newest first.
// NextCursor is empty on the last page.
type EventPage struct {
	Events     []EventView `json:"events"`
	NextCursor string      `json:"next_cursor,omitempty"`
}
