package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xraph/go-utils/errs"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/intake"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/plan"
	"github.com/xraph/mockprep/user"
)

// ──────────────────────────────────────────────────
// Auth
// ──────────────────────────────────────────────────

type registerRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Name         string `json:"name" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string     `json:"access_token"`
	TokenType string     `json:"token_type"`
	ExpiresAt int64      `json:"expires_at"`
	User      *user.User `json:"user"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bind(c, &req) {
		return
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	u, err := s.engine.Register(c.Request.Context(), mockprep.RegisterInput{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondToken(c, http.StatusCreated, u)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}
	u, err := s.engine.UserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, mockprep.ErrUserNotFound) {
		s.fail(c, mockprep.ErrInvalidCredentials)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if !CheckPassword(u.PasswordHash, req.Password) {
		s.fail(c, mockprep.ErrInvalidCredentials)
		return
	}
	if !u.IsActive {
		s.fail(c, mockprep.ErrUserInactive)
		return
	}
	s.respondToken(c, http.StatusOK, u)
}

func (s *Server) respondToken(c *gin.Context, status int, u *user.User) {
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, tokenResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: exp.Unix(),
		User:      u,
	})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

type googleRequest struct {
	Credential string `json:"credential" binding:"required"`
}

func (s *Server) googleSignIn(c *gin.Context) {
	if s.google == nil {
		s.fail(c, errs.NewHTTPError(http.StatusNotImplemented, "Google sign-in is not configured"))
		return
	}
	var req googleRequest
	if !s.bind(c, &req) {
		return
	}
	claims, err := s.google.Verify(c.Request.Context(), req.Credential)
	if err != nil {
		s.fail(c, err)
		return
	}
	u, created, err := s.engine.SignInExternal(c.Request.Context(), mockprep.ExternalIdentity{
		Provider: "google",
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.respondToken(c, status, u)
}

type updateProfileRequest struct {
	Name            *string `json:"name"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password" binding:"omitempty,min=8"`
}

func (s *Server) updateMe(c *gin.Context) {
	var req updateProfileRequest
	if !s.bind(c, &req) {
		return
	}
	me := currentUser(c)

	var upd mockprep.ProfileUpdate
	upd.Name = req.Name
	if req.NewPassword != "" {
		// Accounts created through Google have no password to confirm.
		if me.PasswordHash != "" && !CheckPassword(me.PasswordHash, req.CurrentPassword) {
			s.fail(c, mockprep.ErrInvalidCredentials)
			return
		}
		hash, err := HashPassword(req.NewPassword)
		if err != nil {
			s.fail(c, err)
			return
		}
		upd.PasswordHash = &hash
	}

	u, err := s.engine.UpdateProfile(c.Request.Context(), me.ID, upd)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// ──────────────────────────────────────────────────
// Credits
// ──────────────────────────────────────────────────

func (s *Server) balance(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"credits":                 u.Credits,
		"total_credits_purchased": u.TotalCreditsPurchased,
	})
}

func (s *Server) transactions(c *gin.Context) {
	limit, offset, ok := s.paging(c)
	if !ok {
		return
	}
	opts := credit.ListOpts{
		Type:   credit.Type(c.Query("type")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.Query("conversation_id"); raw != "" {
		convID, err := id.ParseConversationID(raw)
		if err != nil {
			s.fail(c, badRequest("invalid conversation_id"))
			return
		}
		opts.ConversationID = convID
	}
	txns, err := s.engine.Transactions(c.Request.Context(), currentUser(c).ID, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(txns))
}

func (s *Server) reconcile(c *gin.Context) {
	target := currentUser(c)
	userID := target.ID
	if raw := c.Query("user_id"); raw != "" && raw != target.ID.String() {
		if !target.IsAdmin() {
			s.fail(c, mockprep.ErrForbidden)
			return
		}
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			s.fail(c, badRequest("invalid user_id"))
			return
		}
		userID = parsed
	}
	rec, err := s.engine.Reconcile(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type grantRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) grant(c *gin.Context) {
	var req grantRequest
	if !s.bind(c, &req) {
		return
	}
	target, err := id.ParseUserID(req.UserID)
	if err != nil {
		s.fail(c, badRequest("invalid user_id"))
		return
	}
	tx, err := s.engine.GrantCredits(c.Request.Context(), target, req.Amount, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction": tx,
		"new_balance": tx.BalanceAfter,
	})
}

// ──────────────────────────────────────────────────
// Conversations
// ──────────────────────────────────────────────────

func (s *Server) startConversation(c *gin.Context) {
	var in conversation.StartInput
	if !s.bindOptional(c, &in) {
		return
	}
	conv, err := s.engine.StartConversation(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) listConversations(c *gin.Context) {
	limit, offset, ok := s.paging(c)
	if !ok {
		return
	}
	opts := conversation.ListOpts{
		Status: conversation.Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}
	list, err := s.engine.ListConversations(c.Request.Context(), currentUser(c).ID, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(list))
}

func (s *Server) getConversation(c *gin.Context) {
	convID, ok := s.conversationID(c)
	if !ok {
		return
	}
	conv, err := s.engine.GetConversation(c.Request.Context(), currentUser(c).ID, convID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
	VapiCallID string `json:"vapi_call_id"`
}

func (s *Server) updateTranscript(c *gin.Context) {
	convID, ok := s.conversationID(c)
	if !ok {
		return
	}
	var req transcriptRequest
	if !s.bind(c, &req) {
		return
	}
	conv, err := s.engine.UpdateTranscript(c.Request.Context(), currentUser(c).ID, convID, req.Transcript, req.VapiCallID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type deductRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) deductCredits(c *gin.Context) {
	convID, ok := s.conversationID(c)
	if !ok {
		return
	}
	var req deductRequest
	if !s.bindOptional(c, &req) {
		return
	}
	remaining, err := s.engine.DeductConversationCredits(c.Request.Context(), currentUser(c).ID, convID, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"credits_remaining": remaining,
	})
}

func (s *Server) completeConversation(c *gin.Context) {
	convID, ok := s.conversationID(c)
	if !ok {
		return
	}
	var in conversation.CompleteInput
	if !s.bindOptional(c, &in) {
		return
	}
	conv, err := s.engine.CompleteConversation(c.Request.Context(), currentUser(c).ID, convID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) cancelConversation(c *gin.Context) {
	convID, ok := s.conversationID(c)
	if !ok {
		return
	}
	conv, err := s.engine.CancelConversation(c.Request.Context(), currentUser(c).ID, convID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) dashboard(c *gin.Context) {
	d, err := s.engine.DashboardStats(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

func (s *Server) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, plan.All())
}

type checkoutRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
	Origin string `json:"origin"`
}

func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
	if !s.bind(c, &req) {
		return
	}
	origin := req.Origin
	if origin == "" {
		origin = c.GetHeader("Origin")
	}
	res, err := s.engine.CreateCheckout(c.Request.Context(), currentUser(c).ID, req.PlanID, origin)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout_url": res.URL,
		"session_id":   res.Payment.ExternalID,
		"payment":      res.Payment,
	})
}

type intentRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (s *Server) createIntent(c *gin.Context) {
	var req intentRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.engine.CreatePaymentIntent(c.Request.Context(), currentUser(c).ID, req.PlanID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client_secret":   res.ClientSecret,
		"publishable_key": s.config.StripePublishableKey,
		"payment_id":      res.Payment.ID,
		"payment":         res.Payment,
	})
}

type confirmRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (s *Server) confirm(c *gin.Context) {
	var req confirmRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.engine.ConfirmCheckout(c.Request.Context(), currentUser(c).ID, req.SessionID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) recoverPayments(c *gin.Context) {
	res, err := s.engine.RecoverPayments(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listPayments(c *gin.Context) {
	limit, offset, ok := s.paging(c)
	if !ok {
		return
	}
	list, err := s.engine.Payments(c.Request.Context(), currentUser(c).ID, payment.ListOpts{
		Status: payment.Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(list))
}

func (s *Server) stripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxWebhookBytes))
	if err != nil {
		s.fail(c, badRequest("unreadable webhook body"))
		return
	}
	res, err := s.engine.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"handled":  res.Handled,
		"settled":  res.Settled,
		"closed":   res.Closed,
	})
}

// ──────────────────────────────────────────────────
// Referrals, misc
// ──────────────────────────────────────────────────

func (s *Server) referrals(c *gin.Context) {
	stats, err := s.engine.ReferralStats(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) vapiConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": s.config.VapiPublicKey})
}

func (s *Server) health(c *gin.Context) {
	if err := s.engine.Store().Ping(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ──────────────────────────────────────────────────
// Intake
// ──────────────────────────────────────────────────

type jobRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) intakeJob(c *gin.Context) {
	var req jobRequest
	if !s.bind(c, &req) {
		return
	}
	job := s.fetchJob(c.Request.Context(), req.URL)
	c.JSON(http.StatusOK, job)
}

type resumeRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) intakeResume(c *gin.Context) {
	var req resumeRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, intake.ExtractResume(req.Text))
}

type promptRequest struct {
	ResumeText    string      `json:"resume_text"`
	JobURL        string      `json:"job_url"`
	Job           *intake.Job `json:"job"`
	TargetRole    string      `json:"target_role"`
	TargetCompany string      `json:"target_company"`
}

func (s *Server) intakePrompt(c *gin.Context) {
	var req promptRequest
	if !s.bind(c, &req) {
		return
	}
	job := req.Job
	if job == nil && req.JobURL != "" {
		fetched := s.fetchJob(c.Request.Context(), req.JobURL)
		job = &fetched
	}
	prompt := intake.Prompt(intake.InterviewRequest{
		Resume:        intake.ExtractResume(req.ResumeText),
		TargetRole:    req.TargetRole,
		TargetCompany: req.TargetCompany,
		Job:           job,
	})
	c.JSON(http.StatusOK, gin.H{"prompt": prompt})
}

// fetchJob never fails; errors are logged and the fallback returned.
func (s *Server) fetchJob(ctx context.Context, rawURL string) intake.Job {
	job, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("job fetch fell back", "url", rawURL, "error", err)
	}
	return job
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, badRequest("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// bindOptional accepts an empty body.
func (s *Server) bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return s.bind(c, dst)
}

func (s *Server) paging(c *gin.Context) (limit, offset int, ok bool) {
	parse := func(key string) (int, bool) {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			return 0, true
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, badRequest(key+" must be a non-negative integer"))
			return 0, false
		}
		return n, true
	}
	if limit, ok = parse("limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = parse("offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

func (s *Server) conversationID(c *gin.Context) (id.ConversationID, bool) {
	convID, err := id.ParseConversationID(c.Param("id"))
	if err != nil {
		s.fail(c, mockprep.ErrConversationNotFound)
		return id.Nil, false
	}
	return convID, true
}

func userID(v any) string {
	if u, ok := v.(*user.User); ok {
		return u.ID.String()
	}
	return ""
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
