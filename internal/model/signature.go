package model

import "time"

// Signature is an immutable record of one signing event.  Exactly one
// Signature may exist per booking (unique key on BookingID) and the
// hash is never recomputed once stored.
//
// Fields:
//  ID                 – opaque unique identifier.
//  BookingID          – booking this signature finalizes.
//  CustomerID         – signer.
//  VendorID           – vendor who performed the work.
//  SignatureData      – base64 encoded signature image or payload.
//  SignatureHash      – SHA-256 over booking id, customer id, timestamp and confirmation text.
//  ConfirmationText   – the text the customer typed to confirm satisfaction.
//  SatisfactionRating – optional 1-5 rating.
//  Feedback           – optional free-text feedback.
//  SignedAt           – submission timestamp.
type Signature struct {
    ID                 string    // signatures.id
    BookingID          string    // signatures.booking_id (unique)
    CustomerID         string    // signatures.customer_id
    VendorID           string    // signatures.vendor_id
    SignatureData      string    // signatures.signature_data
    SignatureHash      string    // signatures.signature_hash
    ConfirmationText   string    // signatures.confirmation_text
    SatisfactionRating *int      // signatures.satisfaction_rating (nullable)
    Feedback           string    // signatures.feedback
    SignedAt           time.Time // signatures.signed_at
}
