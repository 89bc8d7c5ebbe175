package domain

// Group is one bucket of an analytics snapshot
type Group struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // count / total * 100, one decimal
}

// LinkStats is the analytics snapshot of a link, computed on demand
type LinkStats struct {
	LinkID      int64   `json:"link_id"`
	TotalClicks int     `json:"total_clicks"`
	Devices     []Group `json:"devices"`
	Locations   []Group `json:"locations"`
}
