package domain

import "time"

// TrackingLink is a short branded redirect whose clicks and attributed logins are counted.
type TrackingLink struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TargetURL   string    `json:"target_url"`
	Active      bool      `json:"active"`
	ClickCount  int64     `json:"click_count"`
	LoginCount  int64     `json:"login_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConversionRate is LoginCount/ClickCount, or 0 before the first click.
func (l TrackingLink) ConversionRate() float64 {
	return Ratio(l.LoginCount, l.ClickCount)
}

// Ratio divides logins by clicks, treating zero clicks as a zero rate.
func Ratio(logins, clicks int64) float64 {
	if clicks == 0 {
		return 0
	}
	return float64(logins) / float64(clicks)
}

// LinkFilter narrows a link listing. A nil Active matches every link.
type LinkFilter struct {
	Active *bool
}

// LinkPatch carries the administrator-editable fields of a link.
// Nil fields are left untouched. Counters cannot be set this way.
type LinkPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	TargetURL   *string `json:"target_url,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p LinkPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.TargetURL == nil && p.Active == nil
}

// CreateLinkInput is what an administrator supplies for a new link.
// An empty Code asks for a generated one.
type CreateLinkInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TargetURL   string `json:"target_url"`
	Code        string `json:"code,omitempty"`
}

// Resolution is the outcome of a successful redirect lookup.
type Resolution struct {
	Link      TrackingLink
	TargetURL string
	// Tracked is false when recording the click failed and was dropped.
	Tracked bool
}
