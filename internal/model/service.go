package model

import "time"

// Service describes one offering in the marketplace catalog.  Booking
// creation resolves the service to validate it exists and to copy its
// name and base price onto the booking.
type Service struct {
    ID              string    // services.id
    Name            string    // services.name
    Category        string    // services.category
    Description     string    // services.description
    BasePrice       float64   // services.base_price
    DurationMinutes int       // services.duration_minutes
    Active          bool      // services.active
    CreatedAt       time.Time // services.created_at
    UpdatedAt       time.Time // services.updated_at
}
