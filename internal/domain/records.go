package domain

import "time"

// Disaster is a tracked disaster incident.
type Disaster struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LocationName string    `json:"location_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Report is a citizen-submitted report, classified for urgency on ingestion.
type Report struct {
	ID         string    `json:"id"`
	DisasterID string    `json:"disaster_id,omitempty"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	Priority   bool      `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Resource is an available relief resource (shelter, hospital, supply point).
type Resource struct {
	ID          string    `json:"id"`
	DisasterID  string    `json:"disaster_id,omitempty"`
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
