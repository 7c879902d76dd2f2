package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/user"
)

func TestUserModelRoundTrip(t *testing.T) {
	u := &user.User{
		ID:           id.NewUserID(),
		Email:        "ada@example.com",
		Name:         "Ada",
		Role:         user.RoleUser,
		IsActive:     true,
		Credits:      30,
		ReferralCode: "ABCD1234",
		ReferredBy:   id.NewUserID(),
	}
	out, err := fromUserModel(toUserModel(u))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if out.ReferredBy != u.ReferredBy || out.Credits != 30 || out.ReferralCode != "ABCD1234" {
		t.Errorf("got %+v", out)
	}

	u.ReferredBy = id.Nil
	out, err = fromUserModel(toUserModel(u))
	if err != nil {
		t.Fatalf("round trip without referrer: %v", err)
	}
	if !out.ReferredBy.IsNil() {
		t.Errorf("expected nil referrer, got %q", out.ReferredBy)
	}
}

func TestAnalysisModelRoundTrip(t *testing.T) {
	if toAnalysisModel(nil) != nil || fromAnalysisModel(nil) != nil {
		t.Fatal("nil analysis should map to nil")
	}

	a := conversation.AnalyzeWithSeed("Interviewer: tell me about yourself\nCandidate: I build APIs", 12, 42)
	out := fromAnalysisModel(toAnalysisModel(a))

	if out.OverallScore != a.OverallScore || out.TotalWords != a.TotalWords {
		t.Errorf("scores changed: %+v vs %+v", out, a)
	}
	if len(out.Timeline) != len(a.Timeline) {
		t.Fatalf("timeline length = %d, want %d", len(out.Timeline), len(a.Timeline))
	}
	for i := range a.Timeline {
		if out.Timeline[i] != a.Timeline[i] {
			t.Errorf("timeline[%d] = %+v, want %+v", i, out.Timeline[i], a.Timeline[i])
		}
	}
}

func TestTransactionModelOptionalRefs(t *testing.T) {
	tx := credit.NewCredit(credit.Entry{
		UserID: id.NewUserID(),
		Amount: 20,
		Type:   credit.TypeSignupBonus,
	})
	m := toTransactionModel(tx)
	if m.ConversationID != "" || m.PaymentID != "" {
		t.Fatalf("expected empty refs, got %q / %q", m.ConversationID, m.PaymentID)
	}
	out, err := fromTransactionModel(m)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if out.Amount != 20 || out.Type != credit.TypeSignupBonus {
		t.Errorf("got %+v", out)
	}
}

func TestMigrationIndexesCoverUniqueKeys(t *testing.T) {
	tests := []struct {
		col string
		key string
	}{
		{colUsers, "email"},
		{colUsers, "referral_code"},
		{colPayments, "external_id"},
		{colReferrals, "referred_id"},
	}
	indexes := migrationIndexes()
	for _, tt := range tests {
		found := false
		for _, idx := range indexes[tt.col] {
			keys, ok := idx.Keys.(bson.D)
			if ok && idx.Options != nil && len(keys) == 1 && keys[0].Key == tt.key {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: missing unique index on %s", tt.col, tt.key)
		}
	}
}
