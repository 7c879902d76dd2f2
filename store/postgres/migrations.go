package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the mockprep store.
var Migrations = migrate.NewGroup("mockprep")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_mockprep_users",
			Version: "20250601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mockprep_users (
    id                      TEXT PRIMARY KEY,
    email                   TEXT NOT NULL,
    name                    TEXT NOT NULL DEFAULT '',
    password_hash           TEXT NOT NULL DEFAULT '',
    role                    TEXT NOT NULL DEFAULT 'user',
    is_active               BOOLEAN NOT NULL DEFAULT TRUE,
    credits                 BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
    total_credits_purchased BIGINT NOT NULL DEFAULT 0,
    referral_code           TEXT NOT NULL,
    referred_by             TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS mockprep_users_email_key ON mockprep_users (email);
CREATE UNIQUE INDEX IF NOT EXISTS mockprep_users_referral_code_key ON mockprep_users (referral_code);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mockprep_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mockprep_credit_transactions",
			Version: "20250601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mockprep_credit_transactions (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL REFERENCES mockprep_users (id),
    amount          BIGINT NOT NULL CHECK (amount <> 0),
    type            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    conversation_id TEXT NOT NULL DEFAULT '',
    payment_id      TEXT NOT NULL DEFAULT '',
    balance_after   BIGINT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_mockprep_ctxn_user ON mockprep_credit_transactions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_mockprep_ctxn_conversation ON mockprep_credit_transactions (conversation_id) WHERE conversation_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS mockprep_ctxn_purchase_payment_key
    ON mockprep_credit_transactions (payment_id) WHERE type = 'purchase' AND payment_id <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mockprep_credit_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mockprep_conversations",
			Version: "20250601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mockprep_conversations (
    id               TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL REFERENCES mockprep_users (id),
    type             TEXT NOT NULL DEFAULT 'mock_interview',
    title            TEXT NOT NULL DEFAULT '',
    job_title        TEXT NOT NULL DEFAULT '',
    company          TEXT NOT NULL DEFAULT '',
    job_description  TEXT NOT NULL DEFAULT '',
    resume_summary   TEXT NOT NULL DEFAULT '',
    vapi_call_id     TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'active',
    duration_minutes INT NOT NULL DEFAULT 0,
    credits_used     BIGINT NOT NULL DEFAULT 0,
    transcript       TEXT NOT NULL DEFAULT '',
    summary          TEXT NOT NULL DEFAULT '',
    analysis         JSONB,
    completed_at     TIMESTAMPTZ,
    cancelled_at     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_mockprep_conversations_user ON mockprep_conversations (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_mockprep_conversations_status ON mockprep_conversations (user_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mockprep_conversations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mockprep_payments",
			Version: "20250601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mockprep_payments (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL REFERENCES mockprep_users (id),
    external_id  TEXT NOT NULL,
    plan_id      TEXT NOT NULL,
    plan_name    TEXT NOT NULL DEFAULT '',
    amount       BIGINT NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT 'usd',
    credits      BIGINT NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'pending',
    completed_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS mockprep_payments_external_id_key ON mockprep_payments (external_id);
CREATE INDEX IF NOT EXISTS idx_mockprep_payments_user_status ON mockprep_payments (user_id, status, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mockprep_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_mockprep_referrals",
			Version: "20250601000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS mockprep_referrals (
    id             TEXT PRIMARY KEY,
    referrer_id    TEXT NOT NULL REFERENCES mockprep_users (id),
    referred_id    TEXT NOT NULL REFERENCES mockprep_users (id),
    bonus_credits  BIGINT NOT NULL DEFAULT 0,
    bonus_credited BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS mockprep_referrals_referred_key ON mockprep_referrals (referred_id);
CREATE INDEX IF NOT EXISTS idx_mockprep_referrals_referrer ON mockprep_referrals (referrer_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS mockprep_referrals`)
				return err
			},
		},
	)
}
