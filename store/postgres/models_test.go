package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/types"
)

func TestTransactionModelRoundTrip(t *testing.T) {
	in := credit.NewDebit(credit.Entry{
		UserID:         id.NewUserID(),
		Amount:         3,
		Type:           credit.TypeConversation,
		Description:    "Real-time credit deduction during conversation",
		ConversationID: id.NewConversationID(),
	})
	in.BalanceAfter = 17

	out, err := fromTransactionModel(toTransactionModel(in))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if *out != *in {
		t.Errorf("got %+v, want %+v", out, in)
	}
	if !out.PaymentID.IsNil() {
		t.Errorf("expected nil payment id, got %q", out.PaymentID)
	}
}

func TestConversationModelAnalysis(t *testing.T) {
	c := conversation.New(id.NewUserID(), conversation.StartInput{JobTitle: "Backend Engineer"})

	m := toConversationModel(c)
	if m.Analysis != nil {
		t.Fatalf("expected NULL analysis for active conversation, got %s", m.Analysis)
	}

	analysis := conversation.AnalyzeWithSeed("Interviewer: hi\nCandidate: hello there", 5, 7)
	done := time.Now().UTC()
	c.Status = conversation.StatusCompleted
	c.Analysis = analysis
	c.CompletedAt = &done

	out, err := fromConversationModel(toConversationModel(c))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if out.Analysis == nil || out.Analysis.OverallScore != analysis.OverallScore {
		t.Fatalf("analysis lost: %+v", out.Analysis)
	}
	if len(out.Analysis.Timeline) != len(analysis.Timeline) {
		t.Errorf("timeline length = %d, want %d", len(out.Analysis.Timeline), len(analysis.Timeline))
	}
	if out.CompletedAt == nil || !out.CompletedAt.Equal(done) {
		t.Errorf("completed_at = %v, want %v", out.CompletedAt, done)
	}
}

func TestPaymentModelMoney(t *testing.T) {
	p := &payment.Payment{
		ID:         id.NewPaymentID(),
		UserID:     id.NewUserID(),
		ExternalID: "cs_test_1",
		PlanID:     "pro",
		Amount:     types.USD(4500),
		Credits:    300,
		Status:     payment.StatusPending,
	}
	out, err := fromPaymentModel(toPaymentModel(p))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if !out.Amount.Equal(types.USD(4500)) {
		t.Errorf("amount = %v", out.Amount)
	}
}

func TestErrorClassification(t *testing.T) {
	if !isNoRows(pgx.ErrNoRows) {
		t.Error("pgx.ErrNoRows not recognized")
	}
	if !isNoRows(fmt.Errorf("pgdriver: tx: %w", pgx.ErrNoRows)) {
		t.Error("wrapped pgx.ErrNoRows not recognized")
	}

	dup := fmt.Errorf("pgdriver: exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "mockprep_users_email_key"})
	constraint, ok := uniqueViolation(dup)
	if !ok || constraint != "mockprep_users_email_key" {
		t.Errorf("uniqueViolation = %q, %v", constraint, ok)
	}
	if _, ok := uniqueViolation(errors.New("boom")); ok {
		t.Error("plain error reported as unique violation")
	}
}
