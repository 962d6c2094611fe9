package models

import "time"

type PointStatus string

const (
	StatusPending  PointStatus = "pending"
	StatusApproved PointStatus = "approved"
	StatusRejected PointStatus = "rejected"
)

func (s PointStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Point is a curated point of interest.
type Point struct {
	ID          string      `json:"id" bson:"_id"`
	Name        string      `json:"name" bson:"name"`
	NameKey     string      `json:"-" bson:"name_key"`
	Category    string      `json:"category" bson:"category"`
	Location    GeoPoint    `json:"location" bson:"location"`
	Description string      `json:"description,omitempty" bson:"description"`
	Address     string      `json:"address,omitempty" bson:"address"`
	Phone       string      `json:"phone,omitempty" bson:"phone"`
	Website     string      `json:"website,omitempty" bson:"website"`
	Tags        []string    `json:"tags" bson:"tags"`
	Status      PointStatus `json:"status" bson:"status"`
	Hidden      bool        `json:"hidden" bson:"hidden"`
	Deleted     bool        `json:"deleted,omitempty" bson:"deleted"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	CreatedBy   string      `json:"created_by" bson:"created_by"`
	ReviewedBy  string      `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time  `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
	ReviewNote  string      `json:"review_note,omitempty" bson:"review_note,omitempty"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
}

func (p Point) Lat() float64 { return p.Location.Lat() }
func (p Point) Lon() float64 { return p.Location.Lon() }

// PointInput is the editable part of a point, as submitted by clients.
type PointInput struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Tags        []string `json:"tags"`
}

// Input returns the editable fields of p.
func (p Point) Input() PointInput {
	return PointInput{
		Name:        p.Name,
		Category:    p.Category,
		Lat:         p.Lat(),
		Lon:         p.Lon(),
		Description: p.Description,
		Address:     p.Address,
		Phone:       p.Phone,
		Website:     p.Website,
		Tags:        p.Tags,
	}
}
