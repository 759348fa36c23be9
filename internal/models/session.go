package models

import "time"

// Session holds the full authentication state: the transient device-flow
// fields while a login is in progress, and the token fields afterwards.
// The two groups are mutually exclusive in steady state.
type Session struct {
	// Device-flow fields, never persisted.
	DeviceCode      string
	UserCode        string
	VerificationURL string
	FlowExpiresAt   time.Time
	PollInterval    time.Duration

	// Token fields, persisted wholesale on every change.
	UserID       string
	CountryCode  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ClearDeviceFlow wipes the device-authorization fields once the flow
// terminates, successfully or not.
func (s *Session) ClearDeviceFlow() {
	s.DeviceCode = ""
	s.UserCode = ""
	s.VerificationURL = ""
	s.FlowExpiresAt = time.Time{}
	s.PollInterval = 0
}

// ClearTokens invalidates the token fields, e.g. after a failed refresh.
func (s *Session) ClearTokens() {
	s.UserID = ""
	s.CountryCode = ""
	s.AccessToken = ""
	s.RefreshToken = ""
	s.ExpiresAt = time.Time{}
}

// HasRefreshToken reports whether a refresh attempt is possible.
func (s *Session) HasRefreshToken() bool {
	return s.RefreshToken != ""
}
