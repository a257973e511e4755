package domain

import "time"

// Wire contract between the sync client and the sync server. Bodies are
// plain JSON; the closing report payload itself travels as a base64-encoded
// sealed blob so the server sees nothing until it opens it with the
// shift's session key.

// OpenShiftRequest starts (or resumes) the caller's shift for today.
type OpenShiftRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpenShiftResponse carries the shift identity, the catalog snapshot and,
// for newly opened shifts only, the session key. The key is transported
// exactly once; a client that lost it must rely on its local keyring.
type OpenShiftResponse struct {
	ShiftID     string        `json:"shift_id"`
	AlreadyOpen bool          `json:"already_open"`
	OpenedAt    time.Time     `json:"opened_at"`
	Site        string        `json:"site"`
	SessionKey  string        `json:"session_key,omitempty"`
	Catalog     []CatalogItem `json:"catalog"`
}

// CloseShiftRequest submits the sealed closing report for one shift.
type CloseShiftRequest struct {
	ShiftID string `json:"shift_id"`
	Payload string `json:"payload"`
}

// CloseShiftResponse reports the submission outcome. Lines is populated
// only for validation_rejected.
type CloseShiftResponse struct {
	Code     ResponseCode `json:"code"`
	Message  string       `json:"message,omitempty"`
	ShiftID  string       `json:"shift_id,omitempty"`
	ClosedAt *time.Time   `json:"closed_at,omitempty"`
	Lines    []LineError  `json:"lines,omitempty"`
}

// ShiftStatusResponse describes the caller's current-day shift, if any.
type ShiftStatusResponse struct {
	Active   bool        `json:"active"`
	ShiftID  string      `json:"shift_id,omitempty"`
	Status   ShiftStatus `json:"status,omitempty"`
	OpenedAt *time.Time  `json:"opened_at,omitempty"`
	Site     string      `json:"site,omitempty"`
}
