package domain

import "time"

// Link represents a shortened URL owned by a single user
type Link struct {
	ID             int64     `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Title          string    `json:"title"`
	DestinationURL string    `json:"destination_url"`
	ShortCode      string    `json:"short_code,omitempty"`   // System generated
	CustomAlias    string    `json:"custom_alias,omitempty"` // User chosen
	QRAssetRef     string    `json:"qr_asset_ref,omitempty"` // Public URL from the asset store
	CreatedAt      time.Time `json:"created_at"`
}

// Identifier returns the value the link resolves by.
// A link carries either a custom alias or a short code, never both.
func (l *Link) Identifier() string {
	if l.CustomAlias != "" {
		return l.CustomAlias
	}
	return l.ShortCode
}

// CreateLinkInput is the payload of a create action
type CreateLinkInput struct {
	Title          string
	DestinationURL string
	CustomAlias    string
	QRImage        []byte // Optional QR image blob handed to the asset store
}

// LinkFilter narrows an owner's listing. An empty Title matches every link.
type LinkFilter struct {
	Title string // Case-insensitive substring of the title
}

// LinkList is an owner's dashboard view. TotalClicks counts clicks across
// all of the owner's links, regardless of the filter.
type LinkList struct {
	Links       []Link
	TotalClicks int
}
