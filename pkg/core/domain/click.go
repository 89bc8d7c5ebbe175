package domain

import "time"

// DeviceCategory is the coarse device class derived from a user agent
type DeviceCategory string

const (
	DeviceMobile  DeviceCategory = "mobile"
	DeviceTablet  DeviceCategory = "tablet"
	DeviceDesktop DeviceCategory = "desktop"
	DeviceUnknown DeviceCategory = "unknown"
)

// Location is the best-effort geo position of a client
type Location struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Label renders the location for grouping, e.g. "Berlin, Germany".
func (l Location) Label() string {
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.City != "":
		return l.City
	default:
		return l.Country
	}
}

// ClickEvent is an immutable record of one resolution of a link
type ClickEvent struct {
	ID           int64          `json:"id"`
	LinkID       int64          `json:"link_id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Device       DeviceCategory `json:"device"`
	Location     *Location      `json:"location,omitempty"` // nil when the geo lookup failed
	RawUserAgent string         `json:"user_agent"`
	ClientID     string         `json:"client_id"` // Hashed client IP
	Referer      string         `json:"referer,omitempty"`
}

// RequestContext is the part of a redirect request the click recorder needs
type RequestContext struct {
	UserAgent  string    `json:"user_agent"`
	ClientIP   string    `json:"client_ip"`
	Referer    string    `json:"referer"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ClickJob is the unit of work handed from the redirect path to the recorder
type ClickJob struct {
	LinkID  int64          `json:"link_id"`
	Request RequestContext `json:"request"`
}
