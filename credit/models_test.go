package credit

import (
	"errors"
	"testing"

	"github.com/xraph/mockprep/id"
)

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(string(typ))
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %q, %v", typ, got, err)
		}
	}
	for _, bad := range []string{"", "bonus", "Purchase", "signup"} {
		if _, err := ParseType(bad); err == nil {
			t.Errorf("ParseType(%q): expected error", bad)
		}
	}
}

func TestEntryValidate(t *testing.T) {
	user := id.NewUserID()
	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"valid", Entry{UserID: user, Amount: 1, Type: TypeConversation}, nil},
		{"missing user", Entry{Amount: 1, Type: TypeManual}, ErrMissingUser},
		{"zero amount", Entry{UserID: user, Type: TypeManual}, ErrNonPositiveAmount},
		{"negative amount", Entry{UserID: user, Amount: -5, Type: TypeManual}, ErrNonPositiveAmount},
		{"bad type", Entry{UserID: user, Amount: 1, Type: "gift"}, ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewCreditDebitSign(t *testing.T) {
	e := Entry{UserID: id.NewUserID(), Amount: 4, Type: TypeConversation, ConversationID: id.NewConversationID()}

	c := NewCredit(e)
	d := NewDebit(e)
	if c.Amount != 4 || !c.IsCredit() {
		t.Errorf("credit amount = %d", c.Amount)
	}
	if d.Amount != -4 || d.IsCredit() {
		t.Errorf("debit amount = %d", d.Amount)
	}
	if d.ConversationID != e.ConversationID {
		t.Error("conversation reference lost")
	}
	if c.ID == d.ID {
		t.Error("transactions share an id")
	}
	if got := Sum([]*Transaction{c, d, c}); got != 4 {
		t.Errorf("Sum = %d, want 4", got)
	}
}
