package conversation

import (
	"testing"

	"github.com/xraph/mockprep/id"
)

func TestNew(t *testing.T) {
	user := id.NewUserID()
	c := New(user, StartInput{JobTitle: "SRE", Company: "Acme"})

	if c.Type != DefaultType {
		t.Errorf("Type = %q, want %q", c.Type, DefaultType)
	}
	if !c.IsActive() || c.DurationMinutes != 0 || c.CreditsUsed != 0 {
		t.Errorf("unexpected initial state: %+v", c)
	}
	if !c.OwnedBy(user) || c.OwnedBy(id.NewUserID()) {
		t.Error("ownership check failed")
	}
	if c.ID.Prefix() != id.PrefixConversation {
		t.Errorf("id prefix = %q", c.ID.Prefix())
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusActive.IsTerminal() {
		t.Error("active is not terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Error("completed and cancelled are terminal")
	}
}
