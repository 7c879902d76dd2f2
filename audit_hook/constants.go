package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionUserRegistered   = "user.registered"
	ActionReferralCredited = "referral.credited"

	// Ledger actions
	ActionCreditsGranted      = "credits.granted"
	ActionCreditsDebited      = "credits.debited"
	ActionInsufficientCredits = "credits.insufficient"

	// Conversation actions
	ActionConversationStarted   = "conversation.started"
	ActionConversationCompleted = "conversation.completed"
	ActionConversationCancelled = "conversation.cancelled"

	// Payment actions
	ActionCheckoutCreated = "checkout.created"
	ActionPaymentSettled  = "payment.settled"
	ActionWebhookReceived = "webhook.received"
)

// Resource constants for audit events.
const (
	ResourceUser         = "user"
	ResourceReferral     = "referral"
	ResourceTransaction  = "credit_transaction"
	ResourceConversation = "conversation"
	ResourcePayment      = "payment"
	ResourceWebhook      = "webhook"
)

// Category constants for audit events.
const (
	CategoryAccount     = "account"
	CategoryLedger      = "ledger"
	CategoryUsage       = "usage"
	CategoryPayment     = "payment"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
