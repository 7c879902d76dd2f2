package payment

import "testing"

func TestIsCheckoutSession(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{"cs_test_a1b2", true},
		{"pi_3Nx", false},
		{"", false},
	}
	for _, tt := range tests {
		p := &Payment{ExternalID: tt.ext}
		if got := p.IsCheckoutSession(); got != tt.want {
			t.Errorf("%q: got %v", tt.ext, got)
		}
	}
}

func TestIsPending(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if (&Payment{Status: s}).IsPending() {
			t.Errorf("%s reported pending", s)
		}
	}
	if !(&Payment{Status: StatusPending}).IsPending() {
		t.Error("pending not reported pending")
	}
}

func TestCanSettle(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, true},
		{StatusFailed, true},
		{StatusCompleted, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		if got := (&Payment{Status: tt.status}).CanSettle(); got != tt.want {
			t.Errorf("%s: CanSettle() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
