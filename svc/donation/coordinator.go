// Package donation drives a donation from checkout creation through the
// external payment page and back to a verified, locally credited amount.
package donation

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/pkg/checkout"
	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/validator"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/project"
)

// Backend is the subset of the API the coordinator calls.
type Backend interface {
	CreateCheckoutSession(ctx context.Context, in fundapi.CheckoutRequest) (string, error)
	VerifyPayment(ctx context.Context, sessionID string) (bool, error)
	Donate(ctx context.Context, projectID string, amount decimal.Decimal) (fundapi.Project, error)
}

// SessionSource exposes the current session. *auth.Manager satisfies it.
type SessionSource interface {
	Snapshot() auth.Snapshot
}

// Catalog is the project read model. *project.Catalog satisfies it.
type Catalog interface {
	Get(id string) (fundapi.Project, bool)
	Credit(projectID string, backer fundapi.Ref, amount decimal.Decimal) (fundapi.Project, error)
	Replace(p fundapi.Project)
}

// Coordinator runs donation attempts. The only state it keeps between calls
// is the set of checkout sessions it has already credited.
type Coordinator struct {
	api        Backend
	session    SessionSource
	catalog    Catalog
	redirector checkout.Redirector
	returnBase string

	mu      sync.Mutex
	seen    map[string]struct{}
	pending map[string]chan struct{}

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewCoordinator builds a coordinator. returnBase is the absolute URL the
// processor sends the user back to; /success and /cancel are appended.
func NewCoordinator(api Backend, session SessionSource, catalog Catalog, redirector checkout.Redirector, returnBase string, opts ...Option) (*Coordinator, error) {
	returnBase = strings.TrimRight(strings.TrimSpace(returnBase), "/")
	u, err := url.Parse(returnBase)
	if err != nil || u.Scheme == "" || u.Host == "" || u.RawQuery != "" {
		return nil, ErrInvalidReturnBase
	}

	c := &Coordinator{
		api:        api,
		session:    session,
		catalog:    catalog,
		redirector: redirector,
		returnBase: returnBase,
		seen:       make(map[string]struct{}),
		pending:    make(map[string]chan struct{}),
		logger:     logger.Discard(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("donation"))
	return c, nil
}

// SuccessURL is the return URL for projectID and amount. The processor
// substitutes the session placeholder.
func (c *Coordinator) SuccessURL(projectID string, amount decimal.Decimal) string {
	return c.returnBase + "/success?session_id=" + checkout.SessionPlaceholder +
		"&project_id=" + url.QueryEscape(projectID) +
		"&amount=" + url.QueryEscape(amount.String())
}

func (c *Coordinator) CancelURL() string {
	return c.returnBase + "/cancel"
}

// Initiate creates a checkout session for intent and resolves where the user
// pays. It does not wait for the payment.
func (c *Coordinator) Initiate(ctx context.Context, intent Intent) (Handoff, error) {
	if err := validateAmount(intent.Amount); err != nil {
		return Handoff{}, err
	}
	if err := validator.Apply(validator.RequiredString("projectId", intent.ProjectID)); err != nil {
		return Handoff{}, err
	}
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated() {
		return Handoff{}, ErrNotAuthenticated
	}

	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = c.now()
	}
	if intent.ProjectName == "" {
		if p, ok := c.catalog.Get(intent.ProjectID); ok {
			intent.ProjectName = p.Title
		}
	}

	attempt := newAttempt(intent.ID)
	log := c.logger.With(logger.ProjectID(intent.ProjectID), logger.Amount(intent.Amount), logger.UserID(snap.UserID()))
	if err := attempt.fire(ctx, EventCreate); err != nil {
		return Handoff{}, err
	}

	fail := func(cause error) (Handoff, error) {
		_ = attempt.fire(ctx, EventCreateFailed)
		log.WarnContext(ctx, "checkout creation failed", logger.Error(cause))
		return Handoff{}, newError(ErrCheckoutCreationFailed, "Error processing donation", cause)
	}

	sessionID, err := c.api.CreateCheckoutSession(ctx, fundapi.CheckoutRequest{
		Amount:      intent.Amount,
		ProjectID:   intent.ProjectID,
		ProjectName: intent.ProjectName,
		SuccessURL:  c.SuccessURL(intent.ProjectID, intent.Amount),
		CancelURL:   c.CancelURL(),
	})
	if err == nil && sessionID == "" {
		err = errors.New("backend returned an empty session id")
	}
	if err != nil {
		return fail(err)
	}
	attempt.SessionID = sessionID

	redirect, err := c.redirector.CheckoutURL(ctx, sessionID)
	if err != nil {
		return fail(err)
	}
	if err := attempt.fire(ctx, EventCreated); err != nil {
		return Handoff{}, err
	}

	c.metrics.initiate()
	log.InfoContext(ctx, "checkout session created", logger.CheckoutSessionID(sessionID))
	return Handoff{
		Session:     CheckoutSession{ID: sessionID, Intent: intent, Status: attempt.sessionStatus()},
		RedirectURL: redirect,
		Attempt:     attempt,
	}, nil
}

// Reconcile verifies the session named by rc and credits the read model at
// most once per session id. A missing session id is a no-op.
func (c *Coordinator) Reconcile(ctx context.Context, rc ReturnContext) (Result, error) {
	if rc.SessionID == "" {
		c.metrics.reconcile(OutcomeNoActiveSession.String())
		return Result{Outcome: OutcomeNoActiveSession}, nil
	}

	log := c.logger.With(logger.CheckoutSessionID(rc.SessionID), logger.ProjectID(rc.ProjectID))
	if !c.reserve(ctx, rc.SessionID) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		c.metrics.reconcile(OutcomeAlreadyReconciled.String())
		log.DebugContext(ctx, "checkout session already reconciled")
		return Result{
			Outcome: OutcomeAlreadyReconciled,
			Session: CheckoutSession{ID: rc.SessionID, Intent: intentFrom(rc), Status: StatusVerified},
		}, nil
	}

	attempt := newAttempt(uuid.New())
	attempt.SessionID = rc.SessionID
	intent := intentFrom(rc)
	intent.ID = attempt.ID
	intent.CreatedAt = c.now()

	if err := attempt.fire(ctx, EventReturned); err != nil {
		c.release(rc.SessionID, false)
		return Result{}, err
	}
	if err := attempt.fire(ctx, EventVerify); err != nil {
		c.release(rc.SessionID, false)
		return Result{}, err
	}

	ok, err := c.api.VerifyPayment(ctx, rc.SessionID)
	if err == nil && !ok {
		err = errors.New("backend reported the payment as unsuccessful")
	}
	if err != nil {
		_ = attempt.fire(ctx, EventVerifyFailed)
		c.release(rc.SessionID, false)
		c.metrics.reconcile(OutcomeFailed.String())
		log.WarnContext(ctx, "payment verification failed", logger.Error(err))
		return Result{
			Outcome: OutcomeFailed,
			Session: CheckoutSession{ID: rc.SessionID, Intent: intent, Status: attempt.sessionStatus()},
			Attempt: attempt,
		}, newError(ErrVerificationFailed, "Payment verification failed", err)
	}

	if err := attempt.fire(ctx, EventVerified); err != nil {
		c.release(rc.SessionID, false)
		return Result{}, err
	}
	credited := c.credit(ctx, log, rc)
	c.release(rc.SessionID, true)

	c.metrics.reconcile(OutcomeVerified.String())
	log.InfoContext(ctx, "payment verified", logger.Amount(rc.Amount))
	return Result{
		Outcome: OutcomeVerified,
		Session: CheckoutSession{ID: rc.SessionID, Intent: intent, Status: attempt.sessionStatus()},
		Project: credited,
		Attempt: attempt,
	}, nil
}

// AddDonation records an in-app donation and swaps the confirmed project
// into the read model.
func (c *Coordinator) AddDonation(ctx context.Context, projectID string, amount decimal.Decimal) (fundapi.Project, error) {
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated() {
		return fundapi.Project{}, ErrNotAuthenticated
	}
	if err := validateAmount(amount); err != nil {
		return fundapi.Project{}, err
	}

	p, err := c.api.Donate(ctx, projectID, amount)
	if err == nil && p.ID == "" {
		err = errors.New("backend returned no project")
	}
	if err != nil {
		c.logger.WarnContext(ctx, "donation failed", logger.ProjectID(projectID), logger.Error(err))
		return fundapi.Project{}, newError(ErrDonationFailed, "Error processing donation", err)
	}
	c.catalog.Replace(p)
	c.logger.InfoContext(ctx, "donation recorded",
		logger.ProjectID(p.ID), logger.Amount(amount), logger.UserID(snap.UserID()))
	return p.Clone(), nil
}

// reserve claims sessionID for reconciliation. It waits while another call
// holds the same id and returns false once the id is recorded as credited.
func (c *Coordinator) reserve(ctx context.Context, sessionID string) bool {
	for {
		c.mu.Lock()
		if _, done := c.seen[sessionID]; done {
			c.mu.Unlock()
			return false
		}
		wait, busy := c.pending[sessionID]
		if !busy {
			c.pending[sessionID] = make(chan struct{})
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return false
		}
	}
}

func (c *Coordinator) release(sessionID string, credited bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if credited {
		c.seen[sessionID] = struct{}{}
	}
	if ch, ok := c.pending[sessionID]; ok {
		close(ch)
		delete(c.pending, sessionID)
	}
}

func (c *Coordinator) credit(ctx context.Context, log *slog.Logger, rc ReturnContext) *fundapi.Project {
	if rc.ProjectID == "" || !rc.Amount.IsPositive() {
		log.DebugContext(ctx, "return context carried nothing to credit")
		return nil
	}
	backer := fundapi.Ref{}
	if id := c.session.Snapshot().Identity; id != nil {
		backer = fundapi.Ref{ID: id.ID, Name: id.Name}
	}
	p, err := c.catalog.Credit(rc.ProjectID, backer, rc.Amount)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			log.DebugContext(ctx, "project not cached, skipping local credit")
		} else {
			log.WarnContext(ctx, "failed to credit project", logger.Error(err))
		}
		return nil
	}
	c.metrics.credit(rc.Amount)
	return &p
}

func validateAmount(amount decimal.Decimal) error {
	if err := validator.Apply(validator.PositiveAmount("amount", amount)); err != nil {
		return errors.Join(ErrInvalidAmount, err)
	}
	return nil
}

func intentFrom(rc ReturnContext) Intent {
	return Intent{ProjectID: rc.ProjectID, Amount: rc.Amount}
}
