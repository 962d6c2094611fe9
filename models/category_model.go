package models

import "time"

// Category groups and colors points on the map and in filter controls.
type Category struct {
	ID        string    `json:"id" bson:"_id" yaml:"id"`
	Name      string    `json:"name" bson:"name" yaml:"name"`
	Color     string    `json:"color" bson:"color" yaml:"color"`
	Icon      string    `json:"icon,omitempty" bson:"icon,omitempty" yaml:"icon"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" yaml:"-"`
}

// CategoryWithCount is a category plus how many live points the caller can see in it.
type CategoryWithCount struct {
	Category
	Count int `json:"count"`
}

// Snapshot is the exported document of the whole point database.
type Snapshot struct {
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Categories []Category `json:"categories"`
	Points     []Point    `json:"points"`
}

const SnapshotVersion = 1
