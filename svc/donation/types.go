package donation

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
)

// Intent is a client-side request to donate. It is never persisted.
type Intent struct {
	ID          uuid.UUID
	ProjectID   string
	ProjectName string
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

// NewIntent stamps a fresh id. CreatedAt is filled by the coordinator when zero.
func NewIntent(projectID string, amount decimal.Decimal) Intent {
	return Intent{ID: uuid.New(), ProjectID: projectID, Amount: amount}
}

type SessionStatus int

const (
	StatusPending SessionStatus = iota
	StatusCompletedUnverified
	StatusVerified
	StatusFailed
)

func (s SessionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompletedUnverified:
		return "completed_unverified"
	case StatusVerified:
		return "verified"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CheckoutSession is the client's view of a backend checkout session.
type CheckoutSession struct {
	ID     string
	Intent Intent
	Status SessionStatus
}

// Handoff is what Initiate returns: the pending session and where to send the user.
type Handoff struct {
	Session     CheckoutSession
	RedirectURL string
	Attempt     *Attempt
}

// ReturnContext is carried on the success URL back from the processor.
type ReturnContext struct {
	SessionID string
	ProjectID string
	Amount    decimal.Decimal
}

// ParseReturnContext reads session_id, project_id and amount. Without a
// session id the result is empty. A missing or unusable amount leaves
// Amount zero: the session can still be verified, it is just not credited
// locally.
func ParseReturnContext(q url.Values) (ReturnContext, error) {
	rc := ReturnContext{
		SessionID: strings.TrimSpace(q.Get("session_id")),
		ProjectID: strings.TrimSpace(q.Get("project_id")),
	}
	if rc.SessionID == "" {
		return ReturnContext{}, nil
	}
	if amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount"))); err == nil && amount.IsPositive() {
		rc.Amount = amount
	}
	return rc, nil
}

// ReturnContextFromURL parses the query of a full success URL.
func ReturnContextFromURL(raw string) (ReturnContext, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ReturnContext{}, ErrInvalidReturnContext
	}
	return ParseReturnContext(u.Query())
}

type Outcome int

const (
	OutcomeNoActiveSession Outcome = iota
	OutcomeVerified
	OutcomeAlreadyReconciled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoActiveSession:
		return "no_active_session"
	case OutcomeVerified:
		return "verified"
	case OutcomeAlreadyReconciled:
		return "already_reconciled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports what Reconcile did. Project is the credited read-model
// entry, or nil when nothing was credited locally.
type Result struct {
	Outcome Outcome
	Session CheckoutSession
	Project *fundapi.Project
	Attempt *Attempt
}
