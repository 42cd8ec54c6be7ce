package allocation

import (
	"math"
	"testing"

	"github.com/homeservepro/marketplace/internal/model"
)

func approvedVendor(id string) model.Vendor {
	return model.Vendor{
		ID:               id,
		OnboardingStatus: model.VendorApproved,
		Availability:     true,
		Services:         []string{"Plumbing - Leak Repair"},
		Pincodes:         []string{"560001"},
	}
}

func TestScore_Weights(t *testing.T) {
	cases := []struct {
		name    string
		vendor  model.Vendor
		pincode string
		want    float64
	}{
		{
			name: "perfect candidate",
			vendor: model.Vendor{
				Ratings:       5.0,
				Availability:  true,
				Pincodes:      []string{"560001"},
				CompletedJobs: 100,
			},
			pincode: "560001",
			want:    1.0,
		},
		{
			name:    "unrated unavailable newcomer",
			vendor:  model.Vendor{Pincodes: []string{"560001"}},
			pincode: "560001",
			want:    0.2, // location match only
		},
		{
			name: "experience saturates at 100 jobs",
			vendor: model.Vendor{
				CompletedJobs: 450,
			},
			pincode: "560001",
			want:    0.1,
		},
		{
			name: "half rating, available, wrong area",
			vendor: model.Vendor{
				Ratings:      2.5,
				Availability: true,
				Pincodes:     []string{"110011"},
			},
			pincode: "560001",
			want:    0.5, // 0.2 rating + 0.3 availability
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.vendor, tc.pincode)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAllocate_FiltersIneligible(t *testing.T) {
	notApproved := approvedVendor("v1")
	notApproved.OnboardingStatus = model.VendorPending

	unavailable := approvedVendor("v2")
	unavailable.Availability = false

	wrongService := approvedVendor("v3")
	wrongService.Services = []string{"House Painting"}

	wrongArea := approvedVendor("v4")
	wrongArea.Pincodes = []string{"110011"}

	eligible := approvedVendor("v5")

	got := Allocate(
		[]model.Vendor{notApproved, unavailable, wrongService, wrongArea, eligible},
		"Plumbing - Leak Repair", "560001",
	)
	if got == nil || got.ID != "v5" {
		t.Fatalf("Allocate() = %v, want v5", got)
	}
}

func TestAllocate_NoEligibleCandidateReturnsNil(t *testing.T) {
	v := approvedVendor("v1")
	if got := Allocate([]model.Vendor{v}, "Plumbing - Leak Repair", "000000"); got != nil {
		t.Fatalf("Allocate() = %v, want nil", got)
	}
	if got := Allocate(nil, "Plumbing - Leak Repair", "560001"); got != nil {
		t.Fatalf("Allocate(nil) = %v, want nil", got)
	}
}

func TestAllocate_EmptyPincodeListServesEverywhere(t *testing.T) {
	v := approvedVendor("v1")
	v.Pincodes = nil
	got := Allocate([]model.Vendor{v}, "Plumbing - Leak Repair", "999999")
	if got == nil || got.ID != "v1" {
		t.Fatalf("Allocate() = %v, want v1", got)
	}
}

func TestAllocate_PrefersHigherScore(t *testing.T) {
	low := approvedVendor("v1")
	low.Ratings = 3.0
	high := approvedVendor("v2")
	high.Ratings = 4.8
	got := Allocate([]model.Vendor{low, high}, "Plumbing - Leak Repair", "560001")
	if got == nil || got.ID != "v2" {
		t.Fatalf("Allocate() = %v, want v2", got)
	}
}

func TestAllocate_TieBreakCompletedJobsThenID(t *testing.T) {
	// Same rating and coverage; the vendor with more completed jobs wins a
	// score tie even though completed jobs also feed the score, so pin the
	// experience factor by saturating both.
	a := approvedVendor("vendor-b")
	a.Ratings = 4.0
	a.CompletedJobs = 150
	b := approvedVendor("vendor-a")
	b.Ratings = 4.0
	b.CompletedJobs = 200

	got := Allocate([]model.Vendor{a, b}, "Plumbing - Leak Repair", "560001")
	if got == nil || got.ID != "vendor-a" {
		t.Fatalf("tie on score: Allocate() = %v, want vendor-a (more jobs)", got)
	}

	// Fully identical stats: lexicographically smaller ID wins.
	b.CompletedJobs = 150
	for i := 0; i < 10; i++ {
		got = Allocate([]model.Vendor{a, b}, "Plumbing - Leak Repair", "560001")
		if got == nil || got.ID != "vendor-a" {
			t.Fatalf("full tie run %d: Allocate() = %v, want vendor-a (smaller id)", i, got)
		}
		// Order of the candidate slice must not matter.
		got = Allocate([]model.Vendor{b, a}, "Plumbing - Leak Repair", "560001")
		if got == nil || got.ID != "vendor-a" {
			t.Fatalf("full tie reversed run %d: Allocate() = %v, want vendor-a", i, got)
		}
	}
}
