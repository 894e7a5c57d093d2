package entity

import (
	"time"
)

// Profile is the persisted application record for a user, keyed by UID in the
// profiles collection. Field names in documents use the camelCase keys below.
type Profile struct {
	UID                     string     `json:"uid" firestore:"-"`
	Email                   string     `json:"email" firestore:"email"`
	DisplayName             string     `json:"displayName" firestore:"displayName"`
	Role                    Role       `json:"role" firestore:"role"`
	EmailVerified           bool       `json:"emailVerified" firestore:"emailVerified"`
	PhoneNumber             string     `json:"phoneNumber" firestore:"phoneNumber"`
	CreatedAt               time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt" firestore:"updatedAt"`
	VerificationEmailSent   bool       `json:"verificationEmailSent" firestore:"verificationEmailSent"`
	VerificationEmailSentAt *time.Time `json:"verificationEmailSentAt,omitempty" firestore:"verificationEmailSentAt"`
	VerifiedAt              *time.Time `json:"verifiedAt,omitempty" firestore:"verifiedAt"`
}

// Profile document keys.
const (
	FieldEmail                   = "email"
	FieldDisplayName             = "displayName"
	FieldRole                    = "role"
	FieldEmailVerified           = "emailVerified"
	FieldPhoneNumber             = "phoneNumber"
	FieldCreatedAt               = "createdAt"
	FieldUpdatedAt               = "updatedAt"
	FieldVerificationEmailSent   = "verificationEmailSent"
	FieldVerificationEmailSentAt = "verificationEmailSentAt"
	FieldVerifiedAt              = "verifiedAt"
)

// ToDocument flattens the profile into a backend-neutral document.
// Nil timestamps are omitted rather than written as null.
func (p *Profile) ToDocument() map[string]any {
	doc := map[string]any{
		FieldEmail:                 p.Email,
		FieldDisplayName:           p.DisplayName,
		FieldRole:                  string(p.Role),
		FieldEmailVerified:         p.EmailVerified,
		FieldPhoneNumber:           p.PhoneNumber,
		FieldCreatedAt:             p.CreatedAt.UTC(),
		FieldUpdatedAt:             p.UpdatedAt.UTC(),
		FieldVerificationEmailSent: p.VerificationEmailSent,
	}
	if p.VerificationEmailSentAt != nil {
		doc[FieldVerificationEmailSentAt] = p.VerificationEmailSentAt.UTC()
	}
	if p.VerifiedAt != nil {
		doc[FieldVerifiedAt] = p.VerifiedAt.UTC()
	}
	return doc
}

// ProfileFromDocument rebuilds a profile from a stored document. Backends hand
// back timestamps either as time.Time (firestore, memory) or RFC3339 strings
// (jsonb), both are accepted.
func ProfileFromDocument(uid string, doc map[string]any) *Profile {
	p := &Profile{UID: uid}
	p.Email, _ = doc[FieldEmail].(string)
	p.DisplayName, _ = doc[FieldDisplayName].(string)
	p.PhoneNumber, _ = doc[FieldPhoneNumber].(string)
	p.EmailVerified, _ = doc[FieldEmailVerified].(bool)
	p.VerificationEmailSent, _ = doc[FieldVerificationEmailSent].(bool)
	if s, ok := doc[FieldRole].(string); ok {
		p.Role = Role(s)
	}
	if t, ok := timeValue(doc[FieldCreatedAt]); ok {
		p.CreatedAt = t
	}
	if t, ok := timeValue(doc[FieldUpdatedAt]); ok {
		p.UpdatedAt = t
	}
	if t, ok := timeValue(doc[FieldVerificationEmailSentAt]); ok {
		p.VerificationEmailSentAt = &t
	}
	if t, ok := timeValue(doc[FieldVerifiedAt]); ok {
		p.VerifiedAt = &t
	}
	return p
}

func timeValue(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return x.UTC(), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
