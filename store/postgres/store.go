package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	mpstore "github.com/xraph/mockprep/store"
	"github.com/xraph/mockprep/user"
)

// compile-time interface check
var _ mpstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// querier is satisfied by both *pgdriver.PgDB and *pgdriver.PgTx.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("mockprep/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", mockprep.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction and commits when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *pgdriver.PgTx) error) error {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", mockprep.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", mockprep.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	return insertUser(ctx, s.pg, u)
}

func (s *Store) CreateUserWithCredit(ctx context.Context, u *user.User, grant *credit.Transaction) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		if grant == nil {
			return nil
		}
		return applyCredit(ctx, tx, grant)
	})
}

func insertUser(ctx context.Context, q querier, u *user.User) error {
	if _, err := q.NewInsert(toUserModel(u)).Exec(ctx); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return mockprep.ErrEmailTaken
			}
			return mockprep.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return s.getUser(ctx, "id = $1", userID.String())
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*user.User, error) {
	return s.getUser(ctx, "referral_code = $1", code)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	m := new(userModel)
	err := s.pg.NewSelect(m).Where(where, arg).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, mockprep.ErrUserNotFound
		}
		return nil, err
	}
	return fromUserModel(m)
}

// UpdateUser writes profile fields. Balances, referral code and referrer
// are owned by the ledger and never change here.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.pg.NewUpdate((*userModel)(nil)).
		Set("email = $1", u.Email).
		Set("name = $2", u.Name).
		Set("password_hash = $3", u.PasswordHash).
		Set("role = $4", string(u.Role)).
		Set("is_active = $5", u.IsActive).
		Set("updated_at = $6", now()).
		Where("id = $7", u.ID.String()).
		Exec(ctx)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && strings.Contains(constraint, "email") {
			return mockprep.ErrEmailTaken
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return mockprep.ErrUserNotFound
	}
	return nil
}

// ==================== Credit Store ====================

func (s *Store) ApplyCredit(ctx context.Context, t *credit.Transaction) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		return applyCredit(ctx, tx, t)
	})
}

// ApplyDebit holds a share lock on a tagged conversation until commit, so a
// concurrent completion waits for the debit and then counts it.
func (s *Store) ApplyDebit(ctx context.Context, t *credit.Transaction) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		if !t.ConversationID.IsNil() {
			if err := lockActiveConversation(ctx, tx, t.ConversationID, t.UserID.String(), "FOR SHARE"); err != nil {
				return err
			}
		}

		var balance int64
		err := tx.NewRaw(`
UPDATE mockprep_users
   SET credits = credits + $1, updated_at = $2
 WHERE id = $3 AND credits + $1 >= 0
RETURNING credits`, t.Amount, now(), t.UserID.String()).Scan(ctx, &balance)
		if err != nil {
			if !isNoRows(err) {
				return err
			}
			exists, existsErr := userExists(ctx, tx, t.UserID)
			if existsErr != nil {
				return existsErr
			}
			if !exists {
				return mockprep.ErrUserNotFound
			}
			return mockprep.ErrInsufficientCredits
		}
		t.BalanceAfter = balance
		_, err = tx.NewInsert(toTransactionModel(t)).Exec(ctx)
		return err
	})
}

// applyCredit raises the balance and appends t inside an open transaction.
func applyCredit(ctx context.Context, q querier, t *credit.Transaction) error {
	purchased := int64(0)
	if t.Type == credit.TypePurchase && t.Amount > 0 {
		purchased = t.Amount
	}

	var balance int64
	err := q.NewRaw(`
UPDATE mockprep_users
   SET credits = credits + $1,
       total_credits_purchased = total_credits_purchased + $2,
       updated_at = $3
 WHERE id = $4
RETURNING credits`, t.Amount, purchased, now(), t.UserID.String()).Scan(ctx, &balance)
	if err != nil {
		if isNoRows(err) {
			return mockprep.ErrUserNotFound
		}
		return err
	}

	t.BalanceAfter = balance
	_, err = q.NewInsert(toTransactionModel(t)).Exec(ctx)
	return err
}

func userExists(ctx context.Context, q querier, userID id.UserID) (bool, error) {
	var exists bool
	err := q.NewRaw(`SELECT EXISTS (SELECT 1 FROM mockprep_users WHERE id = $1)`, userID.String()).
		Scan(ctx, &exists)
	return exists, err
}

func (s *Store) ListTransactions(ctx context.Context, userID id.UserID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID.String())

	argIdx := 1
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if !opts.ConversationID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("conversation_id = $%d", argIdx), opts.ConversationID.String())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) SumTransactions(ctx context.Context, userID id.UserID) (int64, error) {
	var total int64
	err := s.pg.NewRaw(
		`SELECT COALESCE(SUM(amount), 0) FROM mockprep_credit_transactions WHERE user_id = $1`,
		userID.String(),
	).Scan(ctx, &total)
	return total, err
}

// conversationCharges sums the tagged real-time debits of convID.
func conversationCharges(ctx context.Context, q querier, convID id.ConversationID) (int64, error) {
	var total int64
	err := q.NewRaw(
		`SELECT COALESCE(SUM(amount), 0) FROM mockprep_credit_transactions WHERE conversation_id = $1 AND type = $2`,
		convID.String(), string(credit.TypeConversation),
	).Scan(ctx, &total)
	return total, err
}

// lockActiveConversation locks the conversation row in the given mode and
// fails unless it is active. An empty owner skips the ownership check.
func lockActiveConversation(ctx context.Context, q querier, convID id.ConversationID, owner, mode string) error {
	var userID, status string
	err := q.NewRaw(
		`SELECT user_id, status FROM mockprep_conversations WHERE id = $1 `+mode,
		convID.String(),
	).Scan(ctx, &userID, &status)
	if err != nil {
		if isNoRows(err) {
			return mockprep.ErrConversationNotFound
		}
		return err
	}
	if owner != "" && userID != owner {
		return mockprep.ErrConversationNotFound
	}
	if conversation.Status(status) != conversation.StatusActive {
		return mockprep.ErrConversationNotActive
	}
	return nil
}

// ==================== Conversation Store ====================

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	m := toConversationModel(c)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return mockprep.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, convID id.ConversationID) (*conversation.Conversation, error) {
	m := new(conversationModel)
	err := s.pg.NewSelect(m).Where("id = $1", convID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, mockprep.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(m)
}

func (s *Store) ListConversations(ctx context.Context, userID id.UserID, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	var models []conversationModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID.String())

	if opts.Status != "" {
		q = q.Where("status = $2", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*conversation.Conversation, len(models))
	for i := range models {
		c, err := fromConversationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdateTranscript(ctx context.Context, convID id.ConversationID, transcript, callID string) error {
	res, err := s.pg.NewUpdate((*conversationModel)(nil)).
		Set("transcript = $1", transcript).
		Set("vapi_call_id = COALESCE(NULLIF($2, ''), vapi_call_id)", callID).
		Set("updated_at = $3", now()).
		Where("id = $4", convID.String()).
		Where("status = $5", string(conversation.StatusActive)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return s.guarded(ctx, res, convID)
}

// CompleteConversation locks the row, then fixes credits_used from the
// committed tagged debits in the same transaction that flips the status.
func (s *Store) CompleteConversation(ctx context.Context, c *conversation.Conversation) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		if err := lockActiveConversation(ctx, tx, c.ID, "", "FOR UPDATE"); err != nil {
			return err
		}
		charged, err := conversationCharges(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		c.CreditsUsed = -charged

		m := toConversationModel(c)
		_, err = tx.NewUpdate((*conversationModel)(nil)).
			Set("status = $1", m.Status).
			Set("duration_minutes = $2", m.DurationMinutes).
			Set("credits_used = $3", m.CreditsUsed).
			Set("transcript = $4", m.Transcript).
			Set("summary = $5", m.Summary).
			Set("analysis = $6", m.Analysis).
			Set("completed_at = $7", m.CompletedAt).
			Set("updated_at = $8", now()).
			Where("id = $9", m.ID).
			Exec(ctx)
		return err
	})
}

func (s *Store) CancelConversation(ctx context.Context, c *conversation.Conversation) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		if err := lockActiveConversation(ctx, tx, c.ID, "", "FOR UPDATE"); err != nil {
			return err
		}
		charged, err := conversationCharges(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		c.CreditsUsed = -charged

		_, err = tx.NewUpdate((*conversationModel)(nil)).
			Set("status = $1", string(c.Status)).
			Set("credits_used = $2", c.CreditsUsed).
			Set("cancelled_at = $3", c.CancelledAt).
			Set("updated_at = $4", now()).
			Where("id = $5", c.ID.String()).
			Exec(ctx)
		return err
	})
}

// guarded turns a zero-row transition into not-found or not-active.
func (s *Store) guarded(ctx context.Context, res interface{ RowsAffected() (int64, error) }, convID id.ConversationID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.GetConversation(ctx, convID); err != nil {
		return err
	}
	return mockprep.ErrConversationNotActive
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return mockprep.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return getPayment(ctx, s.pg, "id = $1", paymentID.String())
}

func (s *Store) GetPaymentByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	return getPayment(ctx, s.pg, "external_id = $1", externalID)
}

func getPayment(ctx context.Context, q querier, where string, arg any) (*payment.Payment, error) {
	m := new(paymentModel)
	err := q.NewSelect(m).Where(where, arg).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, mockprep.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).Where("user_id = $1", userID.String())

	argIdx := 1
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.Since.UTC())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// SettlePayment flips a settleable payment with a status-guarded update and applies
// the purchase credit in the same transaction, so concurrent settle paths
// race on the row lock and only one of them commits a credit.
func (s *Store) SettlePayment(ctx context.Context, paymentID id.PaymentID, t *credit.Transaction) (*payment.Payment, error) {
	var settled *payment.Payment
	err := s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		ts := now()
		res, err := tx.NewRaw(`
UPDATE mockprep_payments
   SET status = $1, completed_at = $2, updated_at = $2
 WHERE id = $3 AND status IN ($4, $5)`,
			string(payment.StatusCompleted), ts, paymentID.String(),
			string(payment.StatusPending), string(payment.StatusFailed),
		).Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			if _, err := getPayment(ctx, tx, "id = $1", paymentID.String()); err != nil {
				return err
			}
			return mockprep.ErrPaymentAlreadySettled
		}

		if err := applyCredit(ctx, tx, t); err != nil {
			return err
		}
		settled, err = getPayment(ctx, tx, "id = $1", paymentID.String())
		return err
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (s *Store) MarkPayment(ctx context.Context, paymentID id.PaymentID, status payment.Status) error {
	res, err := s.pg.NewUpdate((*paymentModel)(nil)).
		Set("status = $1", string(status)).
		Set("updated_at = $2", now()).
		Where("id = $3", paymentID.String()).
		Where("status IN ($4, $5)", string(payment.StatusPending), string(payment.StatusFailed)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetPayment(ctx, paymentID); err != nil {
			return err
		}
		return mockprep.ErrPaymentAlreadySettled
	}
	return nil
}

// ==================== Referral Store ====================

func (s *Store) CreateReferral(ctx context.Context, r *referral.Referral) error {
	m := toReferralModel(r)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		if _, ok := uniqueViolation(err); ok {
			return mockprep.ErrReferralExists
		}
		return err
	}
	return nil
}

func (s *Store) ListReferrals(ctx context.Context, referrerID id.UserID) ([]*referral.Referral, error) {
	var models []referralModel
	err := s.pg.NewSelect(&models).
		Where("referrer_id = $1", referrerID.String()).
		OrderExpr("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*referral.Referral, len(models))
	for i := range models {
		r, err := fromReferralModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) GetReferralByReferred(ctx context.Context, referredID id.UserID) (*referral.Referral, error) {
	m := new(referralModel)
	err := s.pg.NewSelect(m).Where("referred_id = $1", referredID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, mockprep.ErrNotFound
		}
		return nil, err
	}
	return fromReferralModel(m)
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows matches both database/sql and pgx no-row sentinels.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// uniqueViolation reports a 23505 error and the violated constraint name.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
