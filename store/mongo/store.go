package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	mpstore "github.com/xraph/mockprep/store"
	"github.com/xraph/mockprep/user"
)

// Collection name constants.
const (
	colUsers         = "mockprep_users"
	colTransactions  = "mockprep_credit_transactions"
	colConversations = "mockprep_conversations"
	colPayments      = "mockprep_payments"
	colReferrals     = "mockprep_referrals"
)

// compile-time interface check
var _ mpstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// Balance changes are single-document $inc updates guarded by a filter, so
// they stay atomic on a standalone server. The transaction row is written
// after the balance moves; if that insert fails the balance change is
// reverted, and a failed revert is returned joined with the cause.
//
// A conversation's credits_used is a counter on its own document, raised by
// each tagged debit while the conversation is active.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all mockprep collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: %s indexes: %w", mockprep.ErrMigrationFailed, col, err)
		}
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

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "email") {
				return mockprep.ErrEmailTaken
			}
			return mockprep.ErrAlreadyExists
		}
		return fmt.Errorf("mockprep/mongo: create user: %w", err)
	}
	return nil
}

// CreateUserWithCredit inserts u with grant already folded into its
// balance, then appends the ledger row. A failed append deletes the user
// again so the signup can be retried.
func (s *Store) CreateUserWithCredit(ctx context.Context, u *user.User, grant *credit.Transaction) error {
	if grant == nil {
		return s.CreateUser(ctx, u)
	}

	seeded := *u
	seeded.Credits += grant.Amount
	if grant.Type == credit.TypePurchase && grant.Amount > 0 {
		seeded.TotalCreditsPurchased += grant.Amount
	}
	if err := s.CreateUser(ctx, &seeded); err != nil {
		return err
	}

	grant.BalanceAfter = seeded.Credits
	if _, err := s.mdb.NewInsert(toTransactionModel(grant)).Exec(ctx); err != nil {
		err = fmt.Errorf("%w: insert transaction: %w", mockprep.ErrTransactionFailed, err)
		_, delErr := s.mdb.Collection(colUsers).DeleteOne(ctx, bson.M{"_id": u.ID.String()})
		return withRevert(err, "delete user "+u.ID.String(), delErr)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID.String()})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"referral_code": code})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var m userModel
	err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, mockprep.ErrUserNotFound
		}
		return nil, fmt.Errorf("mockprep/mongo: get user: %w", err)
	}
	return fromUserModel(&m)
}

// UpdateUser writes profile fields. Balances, referral code and referrer
// are owned by the ledger and never change here.
func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.mdb.NewUpdate((*userModel)(nil)).
		Filter(bson.M{"_id": u.ID.String()}).
		Set("email", u.Email).
		Set("name", u.Name).
		Set("password_hash", u.PasswordHash).
		Set("role", string(u.Role)).
		Set("is_active", u.IsActive).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return mockprep.ErrEmailTaken
		}
		return fmt.Errorf("mockprep/mongo: update user: %w", err)
	}
	if res.MatchedCount() == 0 {
		return mockprep.ErrUserNotFound
	}
	return nil
}

// ==================== Credit Store ====================

func (s *Store) ApplyCredit(ctx context.Context, tx *credit.Transaction) error {
	return s.apply(ctx, tx, bson.M{"_id": tx.UserID.String()})
}

// ApplyDebit claims a tagged debit on its conversation before the balance
// moves. The claim is a status-guarded $inc of credits_used, so it orders
// against a completion's status flip on the same document.
func (s *Store) ApplyDebit(ctx context.Context, tx *credit.Transaction) error {
	tagged := !tx.ConversationID.IsNil()
	if tagged {
		if err := s.claimConversationCharge(ctx, tx); err != nil {
			return err
		}
	}

	err := s.apply(ctx, tx, bson.M{
		"_id":     tx.UserID.String(),
		"credits": bson.M{"$gte": -tx.Amount},
	})
	if errors.Is(err, mockprep.ErrUserNotFound) {
		if _, getErr := s.GetUser(ctx, tx.UserID); getErr == nil {
			err = mockprep.ErrInsufficientCredits
		}
	}
	if err != nil && tagged {
		_, relErr := s.mdb.Collection(colConversations).UpdateOne(ctx,
			bson.M{"_id": tx.ConversationID.String()},
			bson.M{"$inc": bson.M{"credits_used": tx.Amount}},
		)
		err = withRevert(err, "release conversation charge", relErr)
	}
	return err
}

func (s *Store) claimConversationCharge(ctx context.Context, tx *credit.Transaction) error {
	res, err := s.mdb.NewUpdate((*conversationModel)(nil)).
		Filter(bson.M{
			"_id":     tx.ConversationID.String(),
			"user_id": tx.UserID.String(),
			"status":  string(conversation.StatusActive),
		}).
		SetUpdate(bson.M{
			"$inc": bson.M{"credits_used": -tx.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mockprep/mongo: claim conversation charge: %w", err)
	}
	if res.MatchedCount() > 0 {
		return nil
	}
	c, err := s.GetConversation(ctx, tx.ConversationID)
	if err != nil {
		return err
	}
	if !c.OwnedBy(tx.UserID) {
		return mockprep.ErrConversationNotFound
	}
	return mockprep.ErrConversationNotActive
}

// apply moves the balance of the user matched by filter and appends tx.
func (s *Store) apply(ctx context.Context, tx *credit.Transaction, filter bson.M) error {
	inc := bson.M{"credits": tx.Amount}
	if tx.Type == credit.TypePurchase && tx.Amount > 0 {
		inc["total_credits_purchased"] = tx.Amount
	}

	var updated userModel
	err := s.mdb.Collection(colUsers).FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": inc, "$set": bson.M{"updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if isNoDocuments(err) {
			return mockprep.ErrUserNotFound
		}
		return fmt.Errorf("mockprep/mongo: apply balance: %w", err)
	}

	tx.BalanceAfter = updated.Credits
	if _, err := s.mdb.NewInsert(toTransactionModel(tx)).Exec(ctx); err != nil {
		revert := bson.M{}
		for k, v := range inc {
			revert[k] = -v.(int64)
		}
		err = fmt.Errorf("%w: insert transaction: %w", mockprep.ErrTransactionFailed, err)
		_, revErr := s.mdb.Collection(colUsers).UpdateOne(ctx, bson.M{"_id": tx.UserID.String()}, bson.M{"$inc": revert})
		return withRevert(err, "revert balance of "+tx.UserID.String(), revErr)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID id.UserID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	var models []transactionModel

	filter := bson.M{"user_id": userID.String()}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if !opts.ConversationID.IsNil() {
		filter["conversation_id"] = opts.ConversationID.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("mockprep/mongo: list transactions: %w", err)
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
	return s.sum(ctx, bson.M{"user_id": userID.String()})
}

func (s *Store) sum(ctx context.Context, match bson.M) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("mockprep/mongo: aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("mockprep/mongo: aggregate decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Conversation Store ====================

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	m := toConversationModel(c)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return mockprep.ErrAlreadyExists
		}
		return fmt.Errorf("mockprep/mongo: create conversation: %w", err)
	}
	return nil
}

func (s *Store) GetConversation(ctx context.Context, convID id.ConversationID) (*conversation.Conversation, error) {
	var m conversationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": convID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, mockprep.ErrConversationNotFound
		}
		return nil, fmt.Errorf("mockprep/mongo: get conversation: %w", err)
	}
	return fromConversationModel(&m)
}

func (s *Store) ListConversations(ctx context.Context, userID id.UserID, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	var models []conversationModel

	filter := bson.M{"user_id": userID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("mockprep/mongo: list conversations: %w", err)
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
	q := s.activeUpdate(convID).
		Set("transcript", transcript).
		Set("updated_at", now())
	if callID != "" {
		q = q.Set("vapi_call_id", callID)
	}
	return s.guarded(ctx, q, convID)
}

// CompleteConversation flips an active conversation and reads back the
// credits_used that tagged debits claimed while it was active.
func (s *Store) CompleteConversation(ctx context.Context, c *conversation.Conversation) error {
	return s.transition(ctx, c, bson.M{
		"status":           string(c.Status),
		"duration_minutes": c.DurationMinutes,
		"transcript":       c.Transcript,
		"summary":          c.Summary,
		"analysis":         toAnalysisModel(c.Analysis),
		"completed_at":     c.CompletedAt,
		"updated_at":       now(),
	})
}

func (s *Store) CancelConversation(ctx context.Context, c *conversation.Conversation) error {
	return s.transition(ctx, c, bson.M{
		"status":       string(c.Status),
		"cancelled_at": c.CancelledAt,
		"updated_at":   now(),
	})
}

func (s *Store) transition(ctx context.Context, c *conversation.Conversation, set bson.M) error {
	var m conversationModel
	err := s.mdb.Collection(colConversations).FindOneAndUpdate(ctx,
		bson.M{"_id": c.ID.String(), "status": string(conversation.StatusActive)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if !isNoDocuments(err) {
			return fmt.Errorf("mockprep/mongo: update conversation: %w", err)
		}
		if _, err := s.GetConversation(ctx, c.ID); err != nil {
			return err
		}
		return mockprep.ErrConversationNotActive
	}
	c.CreditsUsed = m.CreditsUsed
	return nil
}

func (s *Store) activeUpdate(convID id.ConversationID) *mongodriver.UpdateQuery {
	return s.mdb.NewUpdate((*conversationModel)(nil)).
		Filter(bson.M{"_id": convID.String(), "status": string(conversation.StatusActive)})
}

// guarded runs q and turns a zero-match transition into not-found or
// not-active.
func (s *Store) guarded(ctx context.Context, q *mongodriver.UpdateQuery, convID id.ConversationID) error {
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("mockprep/mongo: update conversation: %w", err)
	}
	if res.MatchedCount() > 0 {
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return mockprep.ErrAlreadyExists
		}
		return fmt.Errorf("mockprep/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return s.findPayment(ctx, bson.M{"_id": paymentID.String()})
}

func (s *Store) GetPaymentByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	return s.findPayment(ctx, bson.M{"external_id": externalID})
}

func (s *Store) findPayment(ctx context.Context, filter bson.M) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, mockprep.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("mockprep/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{"user_id": userID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if !opts.Since.IsZero() {
		filter["created_at"] = bson.M{"$gte": opts.Since.UTC()}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("mockprep/mongo: list payments: %w", err)
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

// SettlePayment claims the payment with a settleable-guarded update first. Only
// the caller whose update matched goes on to credit; a failed credit puts the
// payment back to pending so a later path can retry.
func (s *Store) SettlePayment(ctx context.Context, paymentID id.PaymentID, tx *credit.Transaction) (*payment.Payment, error) {
	t := now()
	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(settleable(paymentID)).
		Set("status", string(payment.StatusCompleted)).
		Set("completed_at", t).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("mockprep/mongo: settle payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetPayment(ctx, paymentID); err != nil {
			return nil, err
		}
		return nil, mockprep.ErrPaymentAlreadySettled
	}

	if err := s.ApplyCredit(ctx, tx); err != nil {
		revert := bson.M{
			"$set":   bson.M{"status": string(payment.StatusPending), "updated_at": now()},
			"$unset": bson.M{"completed_at": ""},
		}
		_, revErr := s.mdb.NewUpdate((*paymentModel)(nil)).
			Filter(bson.M{"_id": paymentID.String()}).
			SetUpdate(revert).
			Exec(ctx)
		return nil, withRevert(err, "revert payment "+paymentID.String(), revErr)
	}
	return s.GetPayment(ctx, paymentID)
}

func (s *Store) MarkPayment(ctx context.Context, paymentID id.PaymentID, status payment.Status) error {
	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(settleable(paymentID)).
		Set("status", string(status)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mockprep/mongo: mark payment: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return mockprep.ErrReferralExists
		}
		return fmt.Errorf("mockprep/mongo: create referral: %w", err)
	}
	return nil
}

func (s *Store) ListReferrals(ctx context.Context, referrerID id.UserID) ([]*referral.Referral, error) {
	var models []referralModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"referrer_id": referrerID.String()}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("mockprep/mongo: list referrals: %w", err)
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
	var m referralModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"referred_id": referredID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, mockprep.ErrNotFound
		}
		return nil, fmt.Errorf("mockprep/mongo: get referral: %w", err)
	}
	return fromReferralModel(&m)
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// settleable matches paymentID while it can still settle.
func settleable(paymentID id.PaymentID) bson.M {
	statuses := bson.A{}
	for _, st := range payment.SettleableStatuses() {
		statuses = append(statuses, string(st))
	}
	return bson.M{"_id": paymentID.String(), "status": bson.M{"$in": statuses}}
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all mockprep collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("email_unique"),
			},
			{
				Keys:    bson.D{{Key: "referral_code", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("referral_code_unique"),
			},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "type", Value: 1}}},
		},
		colConversations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colPayments: {
			{
				Keys:    bson.D{{Key: "external_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colReferrals: {
			{
				Keys:    bson.D{{Key: "referred_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "referrer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// withRevert joins a failed compensating write onto the error that
// triggered it. A nil revErr leaves err untouched.
func withRevert(err error, what string, revErr error) error {
	if revErr == nil {
		return err
	}
	return errors.Join(err, fmt.Errorf("mockprep/mongo: %s: %w", what, revErr))
}
