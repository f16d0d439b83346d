//go:build integration

package service

import "time"

// SetNow overrides the clock of s for tests in package service_test.
func SetNow(s *AuthService, now func() time.Time) { s.now = now }
