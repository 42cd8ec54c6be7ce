package model

import "time"

// VendorStatus enumerates the onboarding states of a vendor profile.
// Only approved vendors are eligible for allocation.
type VendorStatus string

const (
    VendorPending   VendorStatus = "pending"
    VendorApproved  VendorStatus = "approved"
    VendorRejected  VendorStatus = "rejected"
    VendorSuspended VendorStatus = "suspended"
)

// Vendor is a service provider profile.  The numeric fields (Ratings,
// TotalRatings, Earnings, CompletedJobs) are running aggregates updated
// outside a transaction; the allocation engine reads them with
// eventual-consistency tolerance.
//
// Fields:
//  ID               – opaque unique identifier.
//  UserID           – account backing this profile.
//  Name             – display name used in notifications.
//  OnboardingStatus – approval state (see VendorStatus).
//  Availability     – whether the vendor currently takes new work.
//  Services         – names of services the vendor offers.
//  Pincodes         – serviceable pincodes; empty means serves everywhere.
//  Ratings          – running average rating out of 5.
//  TotalRatings     – number of ratings contributing to the average.
//  Earnings         – accumulated payout total.
//  CompletedJobs    – count of verified jobs, used as an experience signal.
type Vendor struct {
    ID               string       // vendors.id
    UserID           string       // vendors.user_id
    Name             string       // vendors.name
    OnboardingStatus VendorStatus // vendors.onboarding_status
    Availability     bool         // vendors.availability
    Services         []string     // vendors.services (JSON)
    Pincodes         []string     // vendors.pincodes (JSON)
    Ratings          float64      // vendors.ratings
    TotalRatings     int          // vendors.total_ratings
    Earnings         float64      // vendors.earnings
    CompletedJobs    int          // vendors.completed_jobs
    CreatedAt        time.Time    // vendors.created_at
    UpdatedAt        time.Time    // vendors.updated_at
}

// OffersService reports whether the vendor lists the given service name.
func (v Vendor) OffersService(name string) bool {
    for _, s := range v.Services {
        if s == name {
            return true
        }
    }
    return false
}

// ServesPincode reports whether the vendor covers the given pincode.
// An empty pincode list means the vendor serves everywhere.
func (v Vendor) ServesPincode(pincode string) bool {
    if len(v.Pincodes) == 0 {
        return true
    }
    for _, p := range v.Pincodes {
        if p == pincode {
            return true
        }
    }
    return false
}
