package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/repository"
)

// memBookings is an in-memory Store enforcing the same conditional
// update semantics as the SQL repository.
type memBookings struct {
	rows map[string]*model.Booking
}

func newMemBookings(bs ...*model.Booking) *memBookings {
	m := &memBookings{rows: make(map[string]*model.Booking)}
	for _, b := range bs {
		m.rows[b.ID] = b
	}
	return m
}

func (m *memBookings) Insert(_ context.Context, b *model.Booking) error {
	if _, ok := m.rows[b.ID]; ok {
		return repository.ErrConflict
	}
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id string) (*model.Booking, error) {
	b, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, id string, expected, next model.BookingStatus) error {
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != expected {
		return repository.ErrConflict
	}
	b.Status = next
	return nil
}

func (m *memBookings) CompleteWork(_ context.Context, id string, expected model.BookingStatus, notes string, beforePhotos, afterPhotos []string) error {
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != expected {
		return repository.ErrConflict
	}
	b.Status = model.BookingCompleted
	b.CompletionNotes = notes
	b.BeforePhotos = beforePhotos
	b.AfterPhotos = afterPhotos
	return nil
}

func (m *memBookings) AssignVendor(_ context.Context, id, vendorID string) error {
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	v := vendorID
	b.VendorID = &v
	return nil
}

type memVendors struct {
	rows map[string]*model.Vendor
}

func newMemVendors(vs ...*model.Vendor) *memVendors {
	m := &memVendors{rows: make(map[string]*model.Vendor)}
	for _, v := range vs {
		m.rows[v.ID] = v
	}
	return m
}

func (m *memVendors) GetByID(_ context.Context, id string) (*model.Vendor, error) {
	v, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memVendors) ListCandidates(_ context.Context) ([]model.Vendor, error) {
	var out []model.Vendor
	for _, v := range m.rows {
		if v.OnboardingStatus == model.VendorApproved && v.Availability {
			out = append(out, *v)
		}
	}
	return out, nil
}

type memServices struct {
	rows map[string]*model.Service
}

func (m *memServices) GetByID(_ context.Context, id string) (*model.Service, error) {
	s, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type sentNotice struct {
	userID   string
	category model.NotificationCategory
}

type memNotifier struct {
	sent []sentNotice
}

func (m *memNotifier) Notify(_ context.Context, userID string, category model.NotificationCategory, _, _ string, _ map[string]string) error {
	m.sent = append(m.sent, sentNotice{userID: userID, category: category})
	return nil
}

type memAudit struct {
	actions []model.AuditAction
}

func (m *memAudit) Record(_ context.Context, action model.AuditAction, _, _, _ string, _ map[string]string) error {
	m.actions = append(m.actions, action)
	return nil
}

// stubSigner records signature window requests.
type stubSigner struct {
	requested []string
	hours     []int
	err       error
}

func (s *stubSigner) Request(_ context.Context, bookingID string, timeoutHours int) error {
	if s.err != nil {
		return s.err
	}
	s.requested = append(s.requested, bookingID)
	s.hours = append(s.hours, timeoutHours)
	return nil
}

func strPtr(s string) *string { return &s }

func approvedVendor(id string, jobs int) *model.Vendor {
	return &model.Vendor{
		ID:               id,
		UserID:           "user-" + id,
		Name:             id,
		OnboardingStatus: model.VendorApproved,
		Availability:     true,
		Services:         []string{"Plumbing"},
		Ratings:          4.0,
		TotalRatings:     10,
		CompletedJobs:    jobs,
	}
}

func pendingBooking(id, vendorID string) *model.Booking {
	b := &model.Booking{
		ID:              id,
		CustomerID:      "cust-1",
		ServiceID:       "svc-1",
		ServiceName:     "Plumbing",
		Status:          model.BookingPending,
		SignatureStatus: model.SignatureUnsigned,
		Pincode:         "110001",
		Amount:          500,
	}
	if vendorID != "" {
		b.VendorID = strPtr(vendorID)
	}
	return b
}

type fixture struct {
	lc       *Lifecycle
	bookings *memBookings
	vendors  *memVendors
	notifier *memNotifier
	audit    *memAudit
}

func newFixture(bookings *memBookings, vendors *memVendors) *fixture {
	services := &memServices{rows: map[string]*model.Service{
		"svc-1": {ID: "svc-1", Name: "Plumbing", BasePrice: 500, Active: true},
	}}
	notifier := &memNotifier{}
	audit := &memAudit{}
	return &fixture{
		lc:       NewLifecycle(bookings, vendors, services, notifier, audit),
		bookings: bookings,
		vendors:  vendors,
		notifier: notifier,
		audit:    audit,
	}
}

func validCreateInput() CreateInput {
	return CreateInput{
		CustomerID:  "cust-1",
		ServiceID:   "svc-1",
		ServiceDate: "2026-03-10",
		ServiceTime: "10:00",
		Address:     "12 Park Street",
		Pincode:     "110001",
	}
}

func TestCreate_AllocatesBestVendor(t *testing.T) {
	strong := approvedVendor("ven-strong", 80)
	weak := approvedVendor("ven-weak", 5)
	weak.Ratings = 2.0
	f := newFixture(newMemBookings(), newMemVendors(strong, weak))

	b, err := f.lc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != model.BookingPending || b.SignatureStatus != model.SignatureUnsigned {
		t.Fatalf("new booking = %s/%s, want pending/unsigned", b.Status, b.SignatureStatus)
	}
	if b.VendorID == nil || *b.VendorID != "ven-strong" {
		t.Fatalf("allocated vendor = %v, want ven-strong", b.VendorID)
	}
	if b.Amount != 500 {
		t.Fatalf("amount = %v, want service base price 500", b.Amount)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].category != model.CategoryBookingCreated || f.notifier.sent[0].userID != "user-ven-strong" {
		t.Fatalf("notifications = %+v, want booking_created to the assigned vendor", f.notifier.sent)
	}
	if len(f.audit.actions) != 1 || f.audit.actions[0] != model.AuditCreate {
		t.Fatalf("audit = %v, want [create]", f.audit.actions)
	}
}

func TestCreate_NoEligibleVendorStillCreates(t *testing.T) {
	suspended := approvedVendor("ven-1", 10)
	suspended.OnboardingStatus = model.VendorSuspended
	f := newFixture(newMemBookings(), newMemVendors(suspended))

	b, err := f.lc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.VendorID != nil {
		t.Fatalf("vendor = %v, want unassigned", *b.VendorID)
	}
	if b.Status != model.BookingPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("notifications = %+v, want none without a vendor", f.notifier.sent)
	}
}

func TestCreate_PreselectedVendorMustBeEligible(t *testing.T) {
	v := approvedVendor("ven-1", 10)
	v.Availability = false
	f := newFixture(newMemBookings(), newMemVendors(v))

	in := validCreateInput()
	in.VendorID = "ven-1"
	_, err := f.lc.Create(context.Background(), in)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	f := newFixture(newMemBookings(), newMemVendors(approvedVendor("ven-1", 10)))

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing customer", func(in *CreateInput) { in.CustomerID = "" }},
		{"missing service", func(in *CreateInput) { in.ServiceID = "" }},
		{"missing date", func(in *CreateInput) { in.ServiceDate = "" }},
		{"missing address", func(in *CreateInput) { in.Address = "" }},
		{"short pincode", func(in *CreateInput) { in.Pincode = "1100" }},
		{"alpha pincode", func(in *CreateInput) { in.Pincode = "11000a" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCreateInput()
			tc.mutate(&in)
			if _, err := f.lc.Create(context.Background(), in); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreate_UnknownServiceNotFound(t *testing.T) {
	f := newFixture(newMemBookings(), newMemVendors(approvedVendor("ven-1", 10)))

	in := validCreateInput()
	in.ServiceID = "svc-nope"
	if _, err := f.lc.Create(context.Background(), in); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func vendorActor(vendorID string) Actor {
	return Actor{UserID: "user-" + vendorID, Role: model.RoleVendor, VendorID: vendorID}
}

func TestTransition_GraphIsClosed(t *testing.T) {
	all := []model.BookingStatus{
		model.BookingPending, model.BookingAccepted, model.BookingRejected,
		model.BookingInProgress, model.BookingCompleted, model.BookingVerified,
		model.BookingCancelled,
	}
	legal := map[model.BookingStatus]map[model.BookingStatus]bool{
		model.BookingPending:    {model.BookingAccepted: true, model.BookingRejected: true, model.BookingCancelled: true},
		model.BookingAccepted:   {model.BookingInProgress: true, model.BookingCancelled: true},
		model.BookingInProgress: {model.BookingCompleted: true, model.BookingCancelled: true},
		model.BookingCompleted:  {model.BookingVerified: true},
	}
	ops := Actor{UserID: "ops-1", Role: model.RoleOpsManager}

	for _, from := range all {
		for _, to := range all {
			b := pendingBooking("bk-1", "ven-1")
			b.Status = from
			f := newFixture(newMemBookings(b), newMemVendors(approvedVendor("ven-1", 10)))

			_, err := f.lc.Transition(context.Background(), "bk-1", ops, to)
			if legal[from][to] {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
			} else if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: err = %v, want ErrInvalidTransition", from, to, err)
			}
		}
	}
}

func TestTransition_AssignedVendorMayAccept(t *testing.T) {
	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")), newMemVendors(approvedVendor("ven-1", 10)))

	b, err := f.lc.Transition(context.Background(), "bk-1", vendorActor("ven-1"), model.BookingAccepted)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if b.Status != model.BookingAccepted {
		t.Fatalf("status = %s, want accepted", b.Status)
	}
	if got := f.bookings.rows["bk-1"].Status; got != model.BookingAccepted {
		t.Fatalf("stored status = %s, want accepted", got)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].userID != "cust-1" || f.notifier.sent[0].category != model.CategoryBookingAccepted {
		t.Fatalf("notifications = %+v, want booking_accepted to the customer", f.notifier.sent)
	}
}

func TestTransition_OtherVendorForbidden(t *testing.T) {
	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")),
		newMemVendors(approvedVendor("ven-1", 10), approvedVendor("ven-2", 10)))

	_, err := f.lc.Transition(context.Background(), "bk-1", vendorActor("ven-2"), model.BookingAccepted)
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if got := f.bookings.rows["bk-1"].Status; got != model.BookingPending {
		t.Fatalf("stored status = %s, booking mutated by forbidden actor", got)
	}
}

func TestTransition_CustomerMayOnlyCancelOwnBooking(t *testing.T) {
	owner := Actor{UserID: "cust-1", Role: model.RoleCustomer}
	stranger := Actor{UserID: "cust-2", Role: model.RoleCustomer}

	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")), newMemVendors(approvedVendor("ven-1", 10)))
	if _, err := f.lc.Transition(context.Background(), "bk-1", stranger, model.BookingCancelled); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("stranger cancel err = %v, want ErrForbidden", err)
	}
	if _, err := f.lc.Transition(context.Background(), "bk-1", owner, model.BookingAccepted); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("customer accept err = %v, want ErrForbidden", err)
	}

	b, err := f.lc.Transition(context.Background(), "bk-1", owner, model.BookingCancelled)
	if err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if b.Status != model.BookingCancelled {
		t.Fatalf("status = %s, want cancelled", b.Status)
	}
	// Cancellation notifies the vendor, not the customer.
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].userID != "user-ven-1" || f.notifier.sent[0].category != model.CategoryBookingCancelled {
		t.Fatalf("notifications = %+v, want booking_cancelled to the vendor", f.notifier.sent)
	}
}

func TestTransition_VerifiedRequiresOps(t *testing.T) {
	b := pendingBooking("bk-1", "ven-1")
	b.Status = model.BookingCompleted
	f := newFixture(newMemBookings(b), newMemVendors(approvedVendor("ven-1", 10)))

	if _, err := f.lc.Transition(context.Background(), "bk-1", vendorActor("ven-1"), model.BookingVerified); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("vendor verify err = %v, want ErrForbidden", err)
	}
	ops := Actor{UserID: "ops-1", Role: model.RoleSuperAdmin}
	if _, err := f.lc.Transition(context.Background(), "bk-1", ops, model.BookingVerified); err != nil {
		t.Fatalf("ops verify: %v", err)
	}
}

func TestTransition_ConcurrentWriterSurfacesConflict(t *testing.T) {
	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")), newMemVendors(approvedVendor("ven-1", 10)))

	// First transition wins; replaying the same observed edge conflicts.
	if _, err := f.lc.Transition(context.Background(), "bk-1", vendorActor("ven-1"), model.BookingAccepted); err != nil {
		t.Fatalf("first Transition: %v", err)
	}
	_, err := f.lc.Transition(context.Background(), "bk-1", vendorActor("ven-1"), model.BookingRejected)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition after state moved", err)
	}
}

func TestCompleteWithSignatureRequest(t *testing.T) {
	b := pendingBooking("bk-1", "ven-1")
	b.Status = model.BookingInProgress
	f := newFixture(newMemBookings(b), newMemVendors(approvedVendor("ven-1", 10)))
	signer := &stubSigner{}

	got, err := f.lc.CompleteWithSignatureRequest(context.Background(), "bk-1", vendorActor("ven-1"), signer,
		"replaced the valve", []string{"before.jpg"}, []string{"after.jpg"})
	if err != nil {
		t.Fatalf("CompleteWithSignatureRequest: %v", err)
	}
	if got.Status != model.BookingCompleted || got.SignatureStatus != model.SignatureRequested {
		t.Fatalf("booking = %s/%s, want completed/requested", got.Status, got.SignatureStatus)
	}
	stored := f.bookings.rows["bk-1"]
	if stored.CompletionNotes != "replaced the valve" || len(stored.BeforePhotos) != 1 || len(stored.AfterPhotos) != 1 {
		t.Fatalf("completion evidence not persisted: %+v", stored)
	}
	if len(signer.requested) != 1 || signer.requested[0] != "bk-1" || signer.hours[0] != 48 {
		t.Fatalf("signature requests = %v/%v, want bk-1 with 48h window", signer.requested, signer.hours)
	}
}

func TestCompleteWithSignatureRequest_RequiresInProgress(t *testing.T) {
	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")), newMemVendors(approvedVendor("ven-1", 10)))

	_, err := f.lc.CompleteWithSignatureRequest(context.Background(), "bk-1", vendorActor("ven-1"), &stubSigner{}, "", nil, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestReassign(t *testing.T) {
	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")),
		newMemVendors(approvedVendor("ven-1", 10), approvedVendor("ven-2", 10)))

	b, err := f.lc.Reassign(context.Background(), "bk-1", "ven-2")
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if b.VendorID == nil || *b.VendorID != "ven-2" {
		t.Fatalf("vendor = %v, want ven-2", b.VendorID)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].userID != "user-ven-2" || f.notifier.sent[0].category != model.CategoryBookingReassigned {
		t.Fatalf("notifications = %+v, want booking_reassigned to ven-2's user", f.notifier.sent)
	}
}

func TestReassign_ForbiddenAfterCompletion(t *testing.T) {
	for _, status := range []model.BookingStatus{model.BookingCompleted, model.BookingVerified} {
		b := pendingBooking("bk-1", "ven-1")
		b.Status = status
		f := newFixture(newMemBookings(b), newMemVendors(approvedVendor("ven-1", 10), approvedVendor("ven-2", 10)))

		if _, err := f.lc.Reassign(context.Background(), "bk-1", "ven-2"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s: err = %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestReassign_TargetMustBeEligible(t *testing.T) {
	unavailable := approvedVendor("ven-2", 10)
	unavailable.Availability = false
	f := newFixture(newMemBookings(pendingBooking("bk-1", "ven-1")),
		newMemVendors(approvedVendor("ven-1", 10), unavailable))

	if _, err := f.lc.Reassign(context.Background(), "bk-1", "ven-2"); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

// TestFullLifecycle walks a booking from creation through vendor
// acceptance, work, completion and the opened signature window.
func TestFullLifecycle(t *testing.T) {
	f := newFixture(newMemBookings(), newMemVendors(approvedVendor("ven-1", 10)))
	signer := &stubSigner{}

	b, err := f.lc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	actor := vendorActor("ven-1")
	if _, err := f.lc.Transition(context.Background(), b.ID, actor, model.BookingAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.lc.Transition(context.Background(), b.ID, actor, model.BookingInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}
	final, err := f.lc.CompleteWithSignatureRequest(context.Background(), b.ID, actor, signer, "done", nil, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if final.Status != model.BookingCompleted || final.SignatureStatus != model.SignatureRequested {
		t.Fatalf("final = %s/%s, want completed/requested", final.Status, final.SignatureStatus)
	}
	if len(signer.requested) != 1 {
		t.Fatalf("signature windows opened = %d, want 1", len(signer.requested))
	}
}
