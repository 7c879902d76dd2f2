package mockprep_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/plan"
	"github.com/xraph/mockprep/provider/providertest"
	"github.com/xraph/mockprep/store/memory"
	"github.com/xraph/mockprep/types"
)

// TestDocumentationExamples verifies that the package documentation examples run.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory store for the demo; use store/postgres or store/mongo in production.
		store := memory.New()
		stripeProvider := providertest.New()

		eng := mockprep.New(store,
			mockprep.WithProvider(stripeProvider),
			mockprep.WithLogger(slog.Default()),
			mockprep.WithCheckoutURLs("https://app.example.com", "", ""),
		)

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer eng.Stop()

		u, err := eng.Register(ctx, mockprep.RegisterInput{
			Email:        "ada@example.com",
			Name:         "Ada",
			PasswordHash: "bcrypt-hash",
		})
		if err != nil {
			t.Fatal(err)
		}

		// One credit per interview minute, charged while the call runs.
		conv, err := eng.StartConversation(ctx, u.ID, conversation.StartInput{
			JobTitle: "Product Manager",
			Company:  "Acme",
		})
		if err != nil {
			t.Fatal(err)
		}
		for range 3 {
			if _, err := eng.DeductConversationCredits(ctx, u.ID, conv.ID, 1); err != nil {
				t.Fatal(err)
			}
		}
		done, err := eng.CompleteConversation(ctx, u.ID, conv.ID, conversation.CompleteInput{
			DurationMinutes: 3,
			Transcript:      "AI: Tell me about yourself.\nYou: I ship products.",
		})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Interview used %d credits, overall score %.1f\n", done.CreditsUsed, done.Analysis.OverallScore)

		// Buy more credits; the client confirms after the Stripe redirect.
		checkout, err := eng.CreateCheckout(ctx, u.ID, plan.Starter, "")
		if err != nil {
			t.Fatal(err)
		}
		stripeProvider.MarkPaid(checkout.Payment.ExternalID)

		conf, err := eng.ConfirmCheckout(ctx, u.ID, checkout.Payment.ExternalID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Balance after purchase: %d\n", conf.Balance)

		rec, err := eng.Reconcile(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !rec.Consistent {
			t.Fatalf("ledger out of balance: %+v", rec)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4500)   // $45.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)     // $3.00
		_ = m1.Multiply(3) // $3.00

		// Comparison
		if !m1.Add(m2).Equal(m1.Multiply(3)) {
			t.Error("1+2 should equal 1*3")
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}
