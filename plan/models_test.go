package plan

import "testing"

func TestCatalog(t *testing.T) {
	tests := []struct {
		id      string
		credits int64
		cents   int64
		name    string
	}{
		{Starter, 60, 1000, "Starter"},
		{Pro, 300, 4500, "Pro"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, ok := Lookup(tt.id)
			if !ok {
				t.Fatalf("plan %q missing", tt.id)
			}
			if p.Credits != tt.credits || p.Price.Amount != tt.cents || p.Name != tt.name {
				t.Errorf("got %+v", p)
			}
			if p.Price.Currency != "usd" {
				t.Errorf("currency = %q", p.Price.Currency)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, s := range []string{"", "enterprise", "STARTER"} {
		if _, ok := Lookup(s); ok {
			t.Errorf("Lookup(%q) succeeded", s)
		}
	}
}

func TestAllIsCopy(t *testing.T) {
	all := All()
	if len(all) != 2 {
		t.Fatalf("len = %d", len(all))
	}
	all[0].Credits = 1
	if MustLookup(Starter).Credits != 60 {
		t.Error("catalog mutated through All()")
	}
}
