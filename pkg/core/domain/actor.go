package domain

import "time"

// Actor is an authenticated identity as known to the sign-in provider.
type Actor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	PictureURL  string    `json:"picture_url,omitempty"`
	LastLoginAt time.Time `json:"last_login_at"`
}
