// Package mockprep is the credits-ledger core of an AI mock-interview
// backend.
//
// The Engine owns four concerns that have to stay consistent with each
// other:
//
//   - an append-only credit transaction log and the per-user balance it
//     explains (signup bonus, referral bonus, purchases, manual grants and
//     real-time per-minute conversation charges);
//   - the conversation lifecycle, which drives those charges and freezes
//     them on completion;
//   - payment reconciliation, where webhooks, client confirmations and
//     manual recovery sweeps all converge on one idempotent settlement;
//   - referral processing at signup.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/mockprep"
//	    "github.com/xraph/mockprep/store/memory"
//	)
//
//	eng := mockprep.New(memory.New(),
//	    mockprep.WithProvider(stripeProvider),
//	    mockprep.WithLogger(logger),
//	)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	u, err := eng.Register(ctx, mockprep.RegisterInput{
//	    Email:        "ada@example.com",
//	    Name:         "Ada",
//	    PasswordHash: hash,
//	})
//
// # Consistency
//
// Every balance change goes through the store as one unit together with
// its transaction row, so a user's balance always equals the sum of their
// ledger. Debits are conditional (credits >= amount) and settle flips a
// payment from pending to completed at most once, which is what prevents
// double crediting when several reconciliation paths race.
//
// Stores are provided for memory, PostgreSQL and MongoDB on top of grove.
package mockprep
