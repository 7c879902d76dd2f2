package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		major   string
		display string
	}{
		{"starter price", USD(1000), "10.00", "$10.00"},
		{"pro price", USD(4500), "45.00", "$45.00"},
		{"one cent", USD(1), "0.01", "$0.01"},
		{"zero", Zero("USD"), "0.00", "$0.00"},
		{"negative", USD(-250), "-2.50", "$-2.50"},
		{"zero decimal currency", Money{Amount: 100, Currency: "jpy"}, "100", "JPY 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.major {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.major)
			}
			if got := tt.money.String(); got != tt.display {
				t.Errorf("String: got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := USD(1000).Add(USD(4500)); !got.Equal(USD(5500)) {
		t.Errorf("Add: got %v", got)
	}
	if got := USD(1000).Multiply(3); !got.Equal(USD(3000)) {
		t.Errorf("Multiply: got %v", got)
	}
	if !USD(1).IsPositive() || USD(0).IsPositive() {
		t.Error("IsPositive mismatch")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = USD(1).Add(Zero("eur"))
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"10", 1000, false},
		{"45.5", 4550, false},
		{" 0.01 ", 1, false},
		{"1.005", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMajor(tt.in, "usd")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Amount != tt.want {
				t.Errorf("got %d, want %d", got.Amount, tt.want)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4500))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	expected := `{"amount":4500,"currency":"usd","display":"$45.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", data, expected)
	}
}

func TestEntity(t *testing.T) {
	e := NewEntity()
	if e.CreatedAt.IsZero() || !e.CreatedAt.Equal(e.UpdatedAt) {
		t.Fatalf("unexpected timestamps: %+v", e)
	}
	if !e.Within(time.Minute) {
		t.Error("fresh entity should be within a minute")
	}
	e.CreatedAt = e.CreatedAt.Add(-48 * time.Hour)
	if e.Within(24 * time.Hour) {
		t.Error("old entity reported as recent")
	}
	before := e.UpdatedAt
	time.Sleep(time.Millisecond)
	e.Touch()
	if !e.UpdatedAt.After(before) {
		t.Error("Touch did not advance UpdatedAt")
	}
}
