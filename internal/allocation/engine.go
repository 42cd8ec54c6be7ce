// Package allocation implements the vendor scoring and selection engine
// that assigns supply to demand.  Scoring is a pure function so the
// selection is reproducible: given the same candidate set the engine
// always returns the same vendor.
package allocation

import "github.com/homeservepro/marketplace/internal/model"

// Scoring weights.  The factors sum to 1.0 so a perfect candidate
// scores exactly 1.
const (
    ratingWeight       = 0.4 // normalized average rating
    availabilityWeight = 0.3 // currently accepting work
    locationWeight     = 0.2 // booking pincode in the vendor's service area
    experienceWeight   = 0.1 // completed jobs, saturating at 100
)

// experienceSaturation is the completed-jobs count at which the
// experience factor reaches its maximum.
const experienceSaturation = 100.0

// Score computes the suitability of a vendor for a booking at the given
// pincode.  The result is in [0,1].  An unrated vendor contributes zero
// to the rating factor rather than being excluded.
func Score(v model.Vendor, pincode string) float64 {
    score := (v.Ratings / 5.0) * ratingWeight
    if v.Availability {
        score += availabilityWeight
    }
    if len(v.Pincodes) > 0 && v.ServesPincode(pincode) {
        score += locationWeight
    }
    exp := float64(v.CompletedJobs) / experienceSaturation
    if exp > 1.0 {
        exp = 1.0
    }
    score += exp * experienceWeight
    return score
}

// Allocate selects the best vendor for a booking from the candidate
// set.  Candidates must be approved, available, offer the requested
// service and serve the booking pincode (an empty pincode list means
// the vendor serves everywhere).  Ties on score are broken by more
// completed jobs, then by lexicographically smaller vendor ID, so
// repeated calls over the same candidates are deterministic.
//
// Allocate returns nil when no candidate is eligible; the caller
// creates the booking unassigned in that case.
func Allocate(candidates []model.Vendor, serviceName, pincode string) *model.Vendor {
    var best *model.Vendor
    var bestScore float64
    for i := range candidates {
        v := &candidates[i]
        if v.OnboardingStatus != model.VendorApproved || !v.Availability {
            continue
        }
        if !v.OffersService(serviceName) {
            continue
        }
        if !v.ServesPincode(pincode) {
            continue
        }
        s := Score(*v, pincode)
        if best == nil || s > bestScore || (s == bestScore && preferred(*v, *best)) {
            best = v
            bestScore = s
        }
    }
    if best == nil {
        return nil
    }
    chosen := *best
    return &chosen
}

// preferred reports whether a should win a score tie against b:
// strictly more completed jobs first, then the smaller ID.
func preferred(a, b model.Vendor) bool {
    if a.CompletedJobs != b.CompletedJobs {
        return a.CompletedJobs > b.CompletedJobs
    }
    return a.ID < b.ID
}
