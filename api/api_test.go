package api_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/api"
	"github.com/xraph/mockprep/identity/google"
	"github.com/xraph/mockprep/provider/providertest"
	"github.com/xraph/mockprep/store/memory"
	"github.com/xraph/mockprep/user"
)

const testSecret = "test-secret-0123456789"

type harness struct {
	t       *testing.T
	engine  *mockprep.Engine
	fake    *providertest.Fake
	server  *api.Server
	handler http.Handler
}

func newHarness(t *testing.T, opts ...mockprep.Option) *harness {
	t.Helper()
	return newHarnessWith(t, nil, opts...)
}

func newHarnessWith(t *testing.T, apiOpts []api.Option, opts ...mockprep.Option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := providertest.New()
	base := []mockprep.Option{
		mockprep.WithLogger(logger),
		mockprep.WithProvider(fake),
		mockprep.WithCheckoutURLs("https://app.test", "", ""),
	}
	eng := mockprep.New(memory.New(), append(base, opts...)...)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop() })

	srv := api.New(eng, api.Config{
		JWTSecret:            testSecret,
		TokenTTL:             time.Hour,
		CORSOrigins:          []string{"https://app.test"},
		VapiPublicKey:        "vapi-public",
		StripePublishableKey: "pk_test_123",
	}, append([]api.Option{api.WithLogger(logger)}, apiOpts...)...)
	return &harness{t: t, engine: eng, fake: fake, server: srv, handler: srv.Handler()}
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "/api"+path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) signup(email string) (string, map[string]any) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
		"name":     "Tester",
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(h.t, rec)
	return out["access_token"].(string), out["user"].(map[string]any)
}

func (h *harness) admin() string {
	h.t.Helper()
	u, err := h.engine.Register(context.Background(), mockprep.RegisterInput{
		Email:        "admin@example.com",
		Name:         "Admin",
		PasswordHash: "unused",
		Role:         user.RoleAdmin,
	})
	require.NoError(h.t, err)
	token, _, err := h.server.Tokens().Issue(u)
	require.NoError(h.t, err)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)

	token, u := h.signup("ada@example.com")
	require.NotEmpty(t, token)
	require.EqualValues(t, mockprep.DefaultSignupBonus, u["credits"])
	require.NotContains(t, u, "password_hash")

	rec := h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ADA@example.com", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ADA@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token = decode(t, rec)["access_token"].(string)

	rec = h.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ada@example.com", decode(t, rec)["email"])
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	for _, token := range []string{"", "not-a-jwt"} {
		rec := h.do(http.MethodGet, "/credits", token, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}

	other := api.NewTokens("another-secret-0123456789", time.Hour)
	forged, _, err := other.Issue(&user.User{Email: "x@example.com"})
	require.NoError(t, err)
	rec := h.do(http.MethodGet, "/credits", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	h := newHarness(t)
	h.signup("dup@example.com")

	rec := h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "correct-horse", "name": "Dup",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "short@example.com", "password": "short", "name": "Short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationLifecycle(t *testing.T) {
	h := newHarness(t)
	token, _ := h.signup("conv@example.com")

	rec := h.do(http.MethodPost, "/conversations", token, map[string]string{"job_title": "PM"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	convID := decode(t, rec)["id"].(string)

	rec = h.do(http.MethodPost, "/conversations/"+convID+"/deduct", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, mockprep.DefaultSignupBonus-1, decode(t, rec)["credits_remaining"])

	rec = h.do(http.MethodPut, "/conversations/"+convID+"/transcript", token, map[string]string{
		"transcript": "AI: Tell me about yourself.\nUser: I lead the checkout team.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/conversations/"+convID+"/complete", token, map[string]any{
		"duration_minutes": 1,
		"transcript":       "AI: Tell me about yourself.\nUser: I lead the checkout team.",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode(t, rec)
	require.Equal(t, "completed", done["status"])
	require.EqualValues(t, 1, done["credits_used"])

	rec = h.do(http.MethodPost, "/conversations/"+convID+"/deduct", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = h.do(http.MethodPost, "/conversations/"+convID+"/cancel", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, "/conversations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = h.do(http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode(t, rec)["total_conversations"])
}

func TestConversationNotFoundAndForeign(t *testing.T) {
	h := newHarness(t)
	owner, _ := h.signup("owner@example.com")
	other, _ := h.signup("other@example.com")

	rec := h.do(http.MethodPost, "/conversations", owner, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decode(t, rec)["id"].(string)

	rec = h.do(http.MethodGet, "/conversations/"+convID, other, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodGet, "/conversations/garbage", owner, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeductInsufficientCredits(t *testing.T) {
	h := newHarness(t, mockprep.WithSignupBonus(0))
	token, _ := h.signup("broke@example.com")

	rec := h.do(http.MethodPost, "/conversations", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	convID := decode(t, rec)["id"].(string)

	rec = h.do(http.MethodPost, "/conversations/"+convID+"/deduct", token, map[string]int{"amount": 1})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = h.do(http.MethodGet, "/conversations/"+convID, token, nil)
	require.Equal(t, "active", decode(t, rec)["status"])
}

func TestGrantCredits(t *testing.T) {
	h := newHarness(t)
	token, u := h.signup("grantee@example.com")
	admin := h.admin()

	body := map[string]any{"user_id": u["id"], "amount": 50}
	rec := h.do(http.MethodPost, "/credits/grant", token, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/credits/grant", admin, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, mockprep.DefaultSignupBonus+50, decode(t, rec)["new_balance"])

	rec = h.do(http.MethodPost, "/credits/grant", admin, map[string]any{"user_id": u["id"], "amount": 501})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/credits/reconcile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode(t, rec)["consistent"])

	rec = h.do(http.MethodGet, "/credits/transactions?limit=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	require.Len(t, txns, 1)
	require.Equal(t, "manual", txns[0]["type"])

	rec = h.do(http.MethodGet, "/credits/transactions?limit=-1", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutConfirmAndWebhook(t *testing.T) {
	h := newHarness(t)
	token, _ := h.signup("buyer@example.com")

	rec := h.do(http.MethodPost, "/payments/checkout", token, map[string]string{"plan_id": "starter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessionID := decode(t, rec)["session_id"].(string)

	rec = h.do(http.MethodPost, "/payments/confirm", token, map[string]string{"session_id": sessionID})
	require.Equal(t, http.StatusBadRequest, rec.Code, "unpaid checkout must not settle")

	h.fake.MarkPaid(sessionID)
	rec = h.do(http.MethodPost, "/payments/confirm", token, map[string]string{"session_id": sessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, decode(t, rec)["settled"])

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(providertest.CompletedEvent(sessionID)))
	whRec := httptest.NewRecorder()
	h.handler.ServeHTTP(whRec, req)
	require.Equal(t, http.StatusOK, whRec.Code, whRec.Body.String())
	require.Equal(t, false, decode(t, whRec)["settled"])

	rec = h.do(http.MethodGet, "/credits", token, nil)
	require.EqualValues(t, mockprep.DefaultSignupBonus+60, decode(t, rec)["credits"])

	rec = h.do(http.MethodPost, "/payments/checkout", token, map[string]string{"plan_id": "enterprise"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentIntentAndExpiredWebhook(t *testing.T) {
	h := newHarness(t)
	token, _ := h.signup("intent@example.com")

	rec := h.do(http.MethodPost, "/payments/create-intent", token, map[string]string{"plan_id": "pro"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	require.Equal(t, "pk_test_123", out["publishable_key"])
	require.NotEmpty(t, out["client_secret"])
	require.NotEmpty(t, out["payment_id"])
	intentID := out["payment"].(map[string]any)["external_id"].(string)

	rec = h.do(http.MethodPost, "/payments/create-intent", token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/payments/checkout", token, map[string]string{"plan_id": "starter"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessionID := decode(t, rec)["session_id"].(string)

	h.fake.Expire(sessionID)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(providertest.ExpiredEvent(sessionID)))
	whRec := httptest.NewRecorder()
	h.handler.ServeHTTP(whRec, req)
	require.Equal(t, http.StatusOK, whRec.Code, whRec.Body.String())
	require.Equal(t, true, decode(t, whRec)["closed"])

	rec = h.do(http.MethodGet, "/payments?status=cancelled", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	require.Len(t, cancelled, 1)
	require.Equal(t, sessionID, cancelled[0]["external_id"])

	h.fake.MarkPaid(intentID)
	rec = h.do(http.MethodPost, "/payments/confirm", token, map[string]string{"session_id": intentID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/credits", token, nil)
	require.EqualValues(t, mockprep.DefaultSignupBonus+300, decode(t, rec)["credits"])
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	token, _ := h.signup("profile@example.com")

	rec := h.do(http.MethodPut, "/auth/me", token, map[string]any{"name": "  Grace Hopper "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Grace Hopper", decode(t, rec)["name"])

	rec = h.do(http.MethodPut, "/auth/me", token, map[string]any{"name": " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPut, "/auth/me", token, map[string]any{
		"current_password": "wrong-pass",
		"new_password":     "new-password-1",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPut, "/auth/me", token, map[string]any{
		"current_password": "correct-horse",
		"new_password":     "new-password-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, mockprep.DefaultSignupBonus, decode(t, rec)["credits"], "profile edits never touch the balance")

	rec = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "profile@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "profile@example.com", "password": "new-password-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGoogleSignInNotConfigured(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/auth/google", "", map[string]string{"credential": "x"})
	require.Equal(t, http.StatusNotImplemented, rec.Code, rec.Body.String())
}

type googleKeys struct{ pub *rsa.PublicKey }

func (k googleKeys) Key(context.Context, string) (*rsa.PublicKey, error) { return k.pub, nil }

func googleToken(t *testing.T, key *rsa.PrivateKey, email string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &google.Claims{
		Email:         email,
		EmailVerified: true,
		Name:          "Katherine Johnson",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "g-42",
			Audience:  jwt.ClaimStrings{"client-123"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tok.Header["kid"] = "k1"
	raw, err := tok.SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestGoogleSignIn(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier := google.New("client-123", google.WithKeySource(googleKeys{pub: &key.PublicKey}))
	h := newHarnessWith(t, []api.Option{api.WithGoogle(verifier)})

	rec := h.do(http.MethodPost, "/auth/google", "", map[string]string{"credential": googleToken(t, key, "kj@example.com")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	require.NotEmpty(t, out["access_token"])
	first := out["user"].(map[string]any)
	require.EqualValues(t, mockprep.DefaultSignupBonus, first["credits"])
	require.Equal(t, "Katherine Johnson", first["name"])

	rec = h.do(http.MethodPost, "/auth/google", "", map[string]string{"credential": googleToken(t, key, "KJ@example.com")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode(t, rec)["user"].(map[string]any)
	require.Equal(t, first["id"], second["id"])
	require.EqualValues(t, mockprep.DefaultSignupBonus, second["credits"], "bonus is granted once")

	rec = h.do(http.MethodPost, "/auth/google", "", map[string]string{"credential": "forged.token.value"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A Google-only account has no password to log in with.
	rec = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "kj@example.com", "password": "anything-at-all"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Password signups are linked by email rather than duplicated.
	_, pwUser := h.signup("linked@example.com")
	rec = h.do(http.MethodPost, "/auth/google", "", map[string]string{"credential": googleToken(t, key, "linked@example.com")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, pwUser["id"], decode(t, rec)["user"].(map[string]any)["id"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	h.fake.Secret = "whsec_test"

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(providertest.CompletedEvent("cs_x")))
	req.Header.Set("Stripe-Signature", "forged")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 2)

	rec = h.do(http.MethodGet, "/vapi/config", "", nil)
	require.Equal(t, "vapi-public", decode(t, rec)["public_key"])

	rec = h.do(http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntakeResumeAndPrompt(t *testing.T) {
	h := newHarness(t)
	token, _ := h.signup("intake@example.com")

	rec := h.do(http.MethodPost, "/intake/resume", token, map[string]string{
		"text": "Product Owner with 6 years of experience in agile teams.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode(t, rec)
	require.Equal(t, "Product Owner", res["current_role"])
	require.EqualValues(t, 6, res["years_experience"])

	rec = h.do(http.MethodPost, "/intake/prompt", token, map[string]any{
		"resume_text": "Product Owner with 6 years of experience.",
		"target_role": "Senior PM",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec)["prompt"], "Position: Senior PM")
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/credits", nil)
	req.Header.Set("Origin", "https://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
