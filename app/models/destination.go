package models

import "time"

// Region groups destinations into multi-country zones (e.g. Europe, Asia)
// used by regional packages.
type Region struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"slug"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Destination is an internal country entry. Provider-native codes are mapped
// to CountryCode (internal 2-letter code) by the normalizer.
type Destination struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	CountryCode string    `gorm:"type:varchar(2);not null;uniqueIndex" json:"country_code"`
	RegionID    *uint     `gorm:"index" json:"region_id"`
	Region      *Region   `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	Active      bool      `gorm:"default:true;index" json:"active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
