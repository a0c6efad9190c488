package backer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/donation"
)

type sessionView struct {
	Status        string        `json:"status"`
	Authenticated bool          `json:"authenticated"`
	User          *fundapi.User `json:"user,omitempty"`
	ExpiresAt     time.Time     `json:"expiresAt,omitzero"`
	Error         string        `json:"error,omitempty"`
}

func newSessionView(s auth.Snapshot) sessionView {
	v := sessionView{
		Status:        s.Status.String(),
		Authenticated: s.IsAuthenticated(),
		User:          s.Identity,
		ExpiresAt:     s.ExpiresAt,
	}
	if s.Err != nil {
		v.Error = s.Err.Message
	}
	return v
}

// projectView adds derived display fields to a project.
type projectView struct {
	fundapi.Project
	Progress decimal.Decimal `json:"progress"`
	DaysLeft int             `json:"daysLeft"`
}

func newProjectView(p fundapi.Project, now time.Time) projectView {
	return projectView{Project: p, Progress: p.Progress(), DaysLeft: p.DaysLeft(now)}
}

func newProjectViews(list []fundapi.Project, now time.Time) []projectView {
	out := make([]projectView, 0, len(list))
	for _, p := range list {
		out = append(out, newProjectView(p, now))
	}
	return out
}

type handoffView struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	Status      string `json:"status"`
	QRCode      string `json:"qrCode,omitempty"`
}

type reconcileView struct {
	Outcome   string          `json:"outcome"`
	Message   string          `json:"message"`
	SessionID string          `json:"sessionId,omitempty"`
	ProjectID string          `json:"projectId,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitzero"`
	Project   *projectView    `json:"project,omitempty"`
}

func newReconcileView(res donation.Result, now time.Time) reconcileView {
	v := reconcileView{
		Outcome:   res.Outcome.String(),
		SessionID: res.Session.ID,
		ProjectID: res.Session.Intent.ProjectID,
		Amount:    res.Session.Intent.Amount,
	}
	switch res.Outcome {
	case donation.OutcomeVerified:
		v.Message = "Thank you for your donation!"
	case donation.OutcomeAlreadyReconciled:
		v.Message = "This payment has already been processed."
	case donation.OutcomeNoActiveSession:
		v.Message = "No payment to confirm."
	default:
		v.Message = "Payment verification failed"
	}
	if res.Project != nil {
		pv := newProjectView(*res.Project, now)
		v.Project = &pv
	}
	return v
}

// date accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type date struct {
	time.Time
}

func (d *date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("date %q is neither RFC 3339 nor YYYY-MM-DD", s)
}
