package models

import "time"

// CredentialPurpose scopes an ephemeral credential to one workflow. Each
// purpose carries its own TTL; the windows are never shared.
type CredentialPurpose string

const (
	PurposeCheckIn CredentialPurpose = "checkin"
	PurposePickup  CredentialPurpose = "pickup"
	PurposeMFA     CredentialPurpose = "mfa"
)

// Valid reports whether the purpose is a known value.
func (p CredentialPurpose) Valid() bool {
	switch p {
	case PurposeCheckIn, PurposePickup, PurposeMFA:
		return true
	}
	return false
}

// PickupCredential is a Redis-held, single-use QR token and OTP pair.
// Successful verification consumes it.
type PickupCredential struct {
	Purpose    CredentialPurpose `json:"purpose"`
	ChildID    string            `json:"child_id,omitempty"`
	GuardianID string            `json:"guardian_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	QRToken    string            `json:"qr_token,omitempty"`
	OTP        string            `json:"otp,omitempty"`
	IssuedAt   time.Time         `json:"issued_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Expired reports whether the credential's window has closed.
func (c *PickupCredential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IssuedCredential is the response shape for freshly issued credentials.
// The OTP is only ever returned to the issuing party.
type IssuedCredential struct {
	QRToken   string    `json:"qr_token,omitempty"`
	OTP       string    `json:"otp,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// VerifyPickupRequest validates a pickup credential before release.
type VerifyPickupRequest struct {
	ChildID    string `json:"child_id" validate:"required,uuid"`
	GuardianID string `json:"guardian_id" validate:"required,uuid"`
	QRToken    string `json:"qr_token,omitempty"`
	OTP        string `json:"otp,omitempty"`
}

// ReleaseRequest closes an open check-in. RequireOTP is explicit: staff
// confirmed releases set it false and the override is audit-logged.
type ReleaseRequest struct {
	GuardianID string `json:"guardian_id" validate:"required,uuid"`
	OTP        string `json:"otp,omitempty"`
	RequireOTP *bool  `json:"require_otp" validate:"required"`
}
