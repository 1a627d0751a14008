package model

import "time"

type Course struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       int64     `json:"price"` // minor currency units
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseRef is the slice of a course carried in payment metadata.
type CourseRef struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title"`
}

// PriceMajor is the price in whole currency units.
func (c Course) PriceMajor() float64 {
	return float64(c.Price) / 100
}
