package models

import "strings"

// AuthToken identifies the customer medium that started a session,
// typically an RFID card UID in upper-case hex.
type AuthToken struct {
	UID string `json:"uid"`
}

// Normalized returns the UID in canonical upper-case form without
// separators.
func (t AuthToken) Normalized() string {
	uid := strings.ToUpper(strings.TrimSpace(t.UID))
	uid = strings.ReplaceAll(uid, ":", "")
	uid = strings.ReplaceAll(uid, "-", "")
	return uid
}

// IsZero reports whether the token carries no identity.
func (t AuthToken) IsZero() bool {
	return strings.TrimSpace(t.UID) == ""
}
