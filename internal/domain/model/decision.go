package model

// Verdict is the outcome of a navigation or trust decision.
type Verdict string

const (
	VerdictAllowed             Verdict = "allowed"
	VerdictPendingUserDecision Verdict = "pending_user_decision"
	VerdictBlocked             Verdict = "blocked"
)

// Reason explains why a navigation was not allowed outright.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonProtocolViolation  Reason = "protocol_violation"
	ReasonUntrustedOrigin    Reason = "untrusted_origin"
	ReasonMalformedTarget    Reason = "malformed_target"
	ReasonUserDeclined       Reason = "user_declined"
	ReasonCertificateInvalid Reason = "certificate_invalid"
)

// Decision is the enforcer's answer for one navigation attempt. Message is
// safe to show to the end user.
type Decision struct {
	Verdict Verdict
	Reason  Reason
	Host    string
	Message string
}

// TLSAction tells the transport layer what to do with a certificate failure.
type TLSAction string

const (
	TLSProceed TLSAction = "proceed"
	TLSCancel  TLSAction = "cancel"
)

// TLSDecision is the enforcer's answer to a transport trust failure.
type TLSDecision struct {
	Action  TLSAction
	Host    string
	Message string
}
