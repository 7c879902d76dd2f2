package user

import (
	"regexp"
	"testing"
)

func TestNewReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{8}$`)
	seen := make(map[string]bool)
	for range 50 {
		code := NewReferralCode()
		if !pattern.MatchString(code) {
			t.Fatalf("unexpected code format %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("codes are not random enough: %d unique of 50", len(seen))
	}
}

func TestNormalize(t *testing.T) {
	if got := NormalizeEmail("  Jane@Example.COM "); got != "jane@example.com" {
		t.Errorf("NormalizeEmail: got %q", got)
	}
	if got := NormalizeReferralCode(" ab12cd34\n"); got != "AB12CD34" {
		t.Errorf("NormalizeReferralCode: got %q", got)
	}
}

func TestIsAdmin(t *testing.T) {
	u := &User{Role: RoleAdmin}
	if !u.IsAdmin() {
		t.Error("admin not detected")
	}
	u.Role = RoleUser
	if u.IsAdmin() {
		t.Error("user reported as admin")
	}
}
