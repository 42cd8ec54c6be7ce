package signature

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/repository"
)

// fakeBookings is an in-memory Store that enforces the same conditional
// update semantics as the SQL repository: a state change whose guard no
// longer holds returns repository.ErrConflict.
type fakeBookings struct {
	rows map[string]*model.Booking
}

func newFakeBookings(bs ...*model.Booking) *fakeBookings {
	f := &fakeBookings{rows: make(map[string]*model.Booking)}
	for _, b := range bs {
		f.rows[b.ID] = b
	}
	return f
}

func (f *fakeBookings) GetByID(_ context.Context, id string) (*model.Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) OpenSignatureWindow(_ context.Context, id string, requestedAt, timeoutAt time.Time) error {
	b, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.BookingCompleted || b.SignatureEscalated {
		return repository.ErrConflict
	}
	if b.SignatureStatus != model.SignatureUnsigned && b.SignatureStatus != model.SignatureRequested {
		return repository.ErrConflict
	}
	b.SignatureStatus = model.SignatureRequested
	b.SignatureRequestedAt = &requestedAt
	b.SignatureTimeoutAt = &timeoutAt
	return nil
}

func (f *fakeBookings) MarkSigned(_ context.Context, id, hash string, submittedAt time.Time) error {
	b, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.BookingCompleted || b.SignatureEscalated {
		return repository.ErrConflict
	}
	if b.SignatureStatus != model.SignatureUnsigned && b.SignatureStatus != model.SignatureRequested {
		return repository.ErrConflict
	}
	b.Status = model.BookingVerified
	b.SignatureStatus = model.SignatureSigned
	b.SignatureHash = &hash
	b.SignatureSubmittedAt = &submittedAt
	return nil
}

func (f *fakeBookings) MarkExpired(_ context.Context, id string, now time.Time) error {
	b, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.SignatureStatus != model.SignatureRequested || b.SignatureEscalated {
		return repository.ErrConflict
	}
	if b.SignatureTimeoutAt == nil || !b.SignatureTimeoutAt.Before(now) {
		return repository.ErrConflict
	}
	b.SignatureStatus = model.SignatureExpired
	b.SignatureEscalated = true
	return nil
}

type fakeSignatures struct {
	rows []*model.Signature
}

func (f *fakeSignatures) Insert(_ context.Context, s *model.Signature) error {
	for _, existing := range f.rows {
		if existing.BookingID == s.BookingID {
			return repository.ErrConflict
		}
	}
	f.rows = append(f.rows, s)
	return nil
}

type fakeVendors struct {
	rows       map[string]*model.Vendor
	ratings    []int
	jobAmounts []float64
}

func newFakeVendors(vs ...*model.Vendor) *fakeVendors {
	f := &fakeVendors{rows: make(map[string]*model.Vendor)}
	for _, v := range vs {
		f.rows[v.ID] = v
	}
	return f
}

func (f *fakeVendors) GetByID(_ context.Context, id string) (*model.Vendor, error) {
	v, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVendors) ApplyRating(_ context.Context, id string, rating int) error {
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	f.ratings = append(f.ratings, rating)
	return nil
}

func (f *fakeVendors) RecordCompletedJob(_ context.Context, id string, amount float64) error {
	v, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	v.CompletedJobs++
	v.Earnings += amount
	f.jobAmounts = append(f.jobAmounts, amount)
	return nil
}

type sentNotice struct {
	userID   string
	category model.NotificationCategory
	payload  map[string]string
}

type fakeNotifier struct {
	sent []sentNotice
}

func (f *fakeNotifier) Notify(_ context.Context, userID string, category model.NotificationCategory, _, _ string, payload map[string]string) error {
	f.sent = append(f.sent, sentNotice{userID: userID, category: category, payload: payload})
	return nil
}

type fakeAudit struct {
	actions []model.AuditAction
}

func (f *fakeAudit) Record(_ context.Context, action model.AuditAction, _, _, _ string, _ map[string]string) error {
	f.actions = append(f.actions, action)
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func completedBooking(id string) *model.Booking {
	return &model.Booking{
		ID:              id,
		CustomerID:      "cust-1",
		VendorID:        strPtr("ven-1"),
		ServiceID:       "svc-1",
		ServiceName:     "Plumbing",
		Status:          model.BookingCompleted,
		SignatureStatus: model.SignatureUnsigned,
		Amount:          500,
	}
}

func newTestWorkflow(bookings *fakeBookings, at time.Time) (*Workflow, *fakeSignatures, *fakeVendors, *fakeNotifier, *fakeAudit) {
	sigs := &fakeSignatures{}
	vendors := newFakeVendors(&model.Vendor{ID: "ven-1", UserID: "user-ven-1", Name: "FixIt"})
	notifier := &fakeNotifier{}
	audit := &fakeAudit{}
	w := NewWorkflow(bookings, sigs, vendors, notifier, audit)
	w.now = func() time.Time { return at }
	return w, sigs, vendors, notifier, audit
}

func TestRequest_OpensWindowAndNotifiesCustomer(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bookings := newFakeBookings(completedBooking("bk-1"))
	w, _, _, notifier, _ := newTestWorkflow(bookings, now)

	if err := w.Request(context.Background(), "bk-1", 0); err != nil {
		t.Fatalf("Request: %v", err)
	}

	b := bookings.rows["bk-1"]
	if b.SignatureStatus != model.SignatureRequested {
		t.Fatalf("signature status = %s, want requested", b.SignatureStatus)
	}
	wantTimeout := now.Add(DefaultTimeoutHours * time.Hour)
	if b.SignatureTimeoutAt == nil || !b.SignatureTimeoutAt.Equal(wantTimeout) {
		t.Fatalf("timeout = %v, want %v", b.SignatureTimeoutAt, wantTimeout)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].category != model.CategorySignatureRequired {
		t.Fatalf("notifications = %+v, want one signature_required", notifier.sent)
	}
	if notifier.sent[0].userID != "cust-1" {
		t.Fatalf("notified %s, want cust-1", notifier.sent[0].userID)
	}
}

func TestRequest_ReRequestExtendsWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bookings := newFakeBookings(completedBooking("bk-1"))
	w, _, _, _, _ := newTestWorkflow(bookings, now)

	if err := w.Request(context.Background(), "bk-1", 24); err != nil {
		t.Fatalf("first Request: %v", err)
	}
	w.now = func() time.Time { return now.Add(2 * time.Hour) }
	if err := w.Request(context.Background(), "bk-1", 24); err != nil {
		t.Fatalf("second Request: %v", err)
	}
	want := now.Add(2 * time.Hour).Add(24 * time.Hour)
	if got := bookings.rows["bk-1"].SignatureTimeoutAt; got == nil || !got.Equal(want) {
		t.Fatalf("timeout = %v, want %v", got, want)
	}
}

func TestRequest_RejectsNonCompletedBooking(t *testing.T) {
	b := completedBooking("bk-1")
	b.Status = model.BookingInProgress
	w, _, _, _, _ := newTestWorkflow(newFakeBookings(b), time.Now().UTC())

	err := w.Request(context.Background(), "bk-1", 48)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestRequest_RejectsSignedBooking(t *testing.T) {
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureSigned
	w, _, _, _, _ := newTestWorkflow(newFakeBookings(b), time.Now().UTC())

	err := w.Request(context.Background(), "bk-1", 48)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func submitInput(bookingID string) SubmitInput {
	return SubmitInput{
		BookingID:        bookingID,
		CustomerID:       "cust-1",
		SignatureData:    "data:image/png;base64,iVBOR",
		ConfirmationText: "Great work, I confirm the service met my expectations.",
	}
}

func TestSubmit_HappyPath(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureRequested
	timeout := now.Add(10 * time.Hour)
	b.SignatureTimeoutAt = &timeout
	bookings := newFakeBookings(b)
	w, sigs, vendors, notifier, audit := newTestWorkflow(bookings, now)

	in := submitInput("bk-1")
	in.SatisfactionRating = intPtr(5)
	sig, err := w.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := bookings.rows["bk-1"]
	if got.Status != model.BookingVerified || got.SignatureStatus != model.SignatureSigned {
		t.Fatalf("booking = %s/%s, want verified/signed", got.Status, got.SignatureStatus)
	}
	if got.SignatureHash == nil || *got.SignatureHash != sig.SignatureHash {
		t.Fatalf("booking hash %v does not match signature hash %s", got.SignatureHash, sig.SignatureHash)
	}
	if len(sig.SignatureHash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(sig.SignatureHash))
	}
	if len(sigs.rows) != 1 {
		t.Fatalf("signature rows = %d, want 1", len(sigs.rows))
	}
	if v := vendors.rows["ven-1"]; v.CompletedJobs != 1 || v.Earnings != 500 {
		t.Fatalf("vendor aggregates = jobs %d earnings %v, want 1/500", v.CompletedJobs, v.Earnings)
	}
	if len(vendors.ratings) != 1 || vendors.ratings[0] != 5 {
		t.Fatalf("ratings = %v, want [5]", vendors.ratings)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].category != model.CategorySignatureCompleted || notifier.sent[0].userID != "user-ven-1" {
		t.Fatalf("notifications = %+v, want signature_completed to vendor user", notifier.sent)
	}
	if len(audit.actions) != 1 || audit.actions[0] != model.AuditSignature {
		t.Fatalf("audit = %v, want [signature]", audit.actions)
	}
}

func TestSubmit_WithoutRatingSkipsRatingUpdate(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureRequested
	timeout := now.Add(time.Hour)
	b.SignatureTimeoutAt = &timeout
	w, _, vendors, _, _ := newTestWorkflow(newFakeBookings(b), now)

	if _, err := w.Submit(context.Background(), submitInput("bk-1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(vendors.ratings) != 0 {
		t.Fatalf("ratings = %v, want none", vendors.ratings)
	}
	if len(vendors.jobAmounts) != 1 {
		t.Fatalf("completed-job updates = %d, want 1", len(vendors.jobAmounts))
	}
}

func TestSubmit_ConfirmationGuard(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		text string
		ok   bool
	}{
		{"exact phrase", RequiredConfirmation, true},
		{"different case", strings.ToUpper(RequiredConfirmation), true},
		{"embedded in feedback", "all good. i CONFIRM the service met my expectations, thanks!", true},
		{"missing phrase", "the work was fine", false},
		{"empty", "", false},
		{"partial phrase", "I confirm the service", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := completedBooking("bk-1")
			b.SignatureStatus = model.SignatureRequested
			timeout := now.Add(time.Hour)
			b.SignatureTimeoutAt = &timeout
			bookings := newFakeBookings(b)
			w, sigs, _, _, _ := newTestWorkflow(bookings, now)

			in := submitInput("bk-1")
			in.ConfirmationText = tc.text
			_, err := w.Submit(context.Background(), in)
			if tc.ok && err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if !tc.ok {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				// Guard must fire before anything is written.
				if bookings.rows["bk-1"].SignatureStatus != model.SignatureRequested {
					t.Fatal("booking mutated despite failed confirmation guard")
				}
				if len(sigs.rows) != 0 {
					t.Fatal("signature persisted despite failed confirmation guard")
				}
			}
		})
	}
}

func TestSubmit_ExpiryBoundary(t *testing.T) {
	timeout := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		at      time.Time
		expired bool
	}{
		{"one second before", timeout.Add(-time.Second), false},
		{"exactly at timeout", timeout, false},
		{"one second after", timeout.Add(time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := completedBooking("bk-1")
			b.SignatureStatus = model.SignatureRequested
			to := timeout
			b.SignatureTimeoutAt = &to
			w, _, _, _, _ := newTestWorkflow(newFakeBookings(b), tc.at)

			_, err := w.Submit(context.Background(), submitInput("bk-1"))
			if tc.expired {
				if !errors.Is(err, ErrExpired) {
					t.Fatalf("err = %v, want ErrExpired", err)
				}
			} else if err != nil {
				t.Fatalf("Submit: %v", err)
			}
		})
	}
}

func TestSubmit_WrongCustomerForbidden(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureRequested
	timeout := now.Add(time.Hour)
	b.SignatureTimeoutAt = &timeout
	w, _, _, _, _ := newTestWorkflow(newFakeBookings(b), now)

	in := submitInput("bk-1")
	in.CustomerID = "cust-2"
	_, err := w.Submit(context.Background(), in)
	if !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSubmit_AlreadySigned(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.Status = model.BookingVerified
	b.SignatureStatus = model.SignatureSigned
	w, _, _, _, _ := newTestWorkflow(newFakeBookings(b), now)

	_, err := w.Submit(context.Background(), submitInput("bk-1"))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestSubmit_LosesRaceAgainstEscalation(t *testing.T) {
	// The booking looks open at read time but the sweep escalates it
	// before the conditional update runs.  The fake models this by
	// flipping the row between GetByID and MarkSigned.
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureRequested
	timeout := now.Add(time.Hour)
	b.SignatureTimeoutAt = &timeout
	bookings := newFakeBookings(b)
	w, sigs, _, _, _ := newTestWorkflow(bookings, now)

	raced := &racingBookings{fakeBookings: bookings}
	w.bookings = raced

	_, err := w.Submit(context.Background(), submitInput("bk-1"))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if len(sigs.rows) != 0 {
		t.Fatal("signature persisted despite losing the race")
	}
	if got := bookings.rows["bk-1"].SignatureStatus; got != model.SignatureExpired {
		t.Fatalf("signature status = %s, want expired", got)
	}
}

// racingBookings escalates the row after the workflow's read, simulating
// a concurrent sweep winning the conditional update.
type racingBookings struct {
	*fakeBookings
}

func (r *racingBookings) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := r.fakeBookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	row := r.fakeBookings.rows[id]
	row.SignatureStatus = model.SignatureExpired
	row.SignatureEscalated = true
	return b, nil
}

func TestEscalate_FirstCallWinsSecondIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureRequested
	timeout := now.Add(-time.Hour)
	b.SignatureTimeoutAt = &timeout
	bookings := newFakeBookings(b)
	w, _, _, _, _ := newTestWorkflow(bookings, now)

	won, err := w.Escalate(context.Background(), "bk-1")
	if err != nil || !won {
		t.Fatalf("first Escalate = (%v, %v), want (true, nil)", won, err)
	}
	got := bookings.rows["bk-1"]
	if got.SignatureStatus != model.SignatureExpired || !got.SignatureEscalated {
		t.Fatalf("booking = %s escalated=%v, want expired/true", got.SignatureStatus, got.SignatureEscalated)
	}

	won, err = w.Escalate(context.Background(), "bk-1")
	if err != nil || won {
		t.Fatalf("second Escalate = (%v, %v), want (false, nil)", won, err)
	}
}

func TestEscalate_WindowStillOpen(t *testing.T) {
	now := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	b := completedBooking("bk-1")
	b.SignatureStatus = model.SignatureRequested
	timeout := now.Add(time.Hour)
	b.SignatureTimeoutAt = &timeout
	w, _, _, _, _ := newTestWorkflow(newFakeBookings(b), now)

	won, err := w.Escalate(context.Background(), "bk-1")
	if won {
		t.Fatal("Escalate reported a win on an open window")
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestSignatureHash_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	a := signatureHash("bk-1", "cust-1", at, "text")
	b := signatureHash("bk-1", "cust-1", at, "text")
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if c := signatureHash("bk-2", "cust-1", at, "text"); c == a {
		t.Fatal("hash does not vary with booking id")
	}
	if c := signatureHash("bk-1", "cust-1", at.Add(time.Second), "text"); c == a {
		t.Fatal("hash does not vary with submission time")
	}
}
