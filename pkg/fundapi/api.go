// Package fundapi provides typed calls for every crowdfunding backend endpoint.
package fundapi

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Doer is the transport used by API. *apiclient.Client satisfies it.
type Doer interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
}

// API wraps a Doer with the backend's endpoints.
type API struct {
	c Doer
}

func New(c Doer) *API {
	return &API{c: c}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type NewProject struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	GoalAmount  decimal.Decimal `json:"-"`
	EndDate     time.Time       `json:"endDate"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

func (p NewProject) MarshalJSON() ([]byte, error) {
	type plain NewProject
	return json.Marshal(struct {
		plain
		GoalAmount json.Number `json:"goalAmount"`
	}{plain(p), number(p.GoalAmount)})
}

// CheckoutRequest asks the backend to open a hosted checkout session.
type CheckoutRequest struct {
	Amount      decimal.Decimal
	ProjectID   string
	ProjectName string
	SuccessURL  string
	CancelURL   string
}

func (r CheckoutRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount      json.Number `json:"amount"`
		ProjectID   string      `json:"projectId"`
		ProjectName string      `json:"projectName"`
		SuccessURL  string      `json:"successUrl"`
		CancelURL   string      `json:"cancelUrl"`
	}{number(r.Amount), r.ProjectID, r.ProjectName, r.SuccessURL, r.CancelURL})
}

func (a *API) Login(ctx context.Context, in Credentials) (AuthResult, error) {
	var out AuthResult
	err := a.c.Post(ctx, "/users/login", in, &out)
	return out, err
}

func (a *API) Register(ctx context.Context, in Registration) (AuthResult, error) {
	var out AuthResult
	err := a.c.Post(ctx, "/users/register", in, &out)
	return out, err
}

// Me returns the identity behind the current bearer token.
func (a *API) Me(ctx context.Context) (User, error) {
	var out User
	err := a.c.Get(ctx, "/users/me", &out)
	return out, err
}

func (a *API) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := a.c.Get(ctx, "/projects", &out)
	return out, err
}

func (a *API) Project(ctx context.Context, id string) (Project, error) {
	var out Project
	err := a.c.Get(ctx, "/projects/"+url.PathEscape(id), &out)
	return out, err
}

func (a *API) CreateProject(ctx context.Context, in NewProject) (Project, error) {
	var out Project
	err := a.c.Post(ctx, "/projects", in, &out)
	return out, err
}

// Donate records an in-app donation and returns the updated project.
func (a *API) Donate(ctx context.Context, projectID string, amount decimal.Decimal) (Project, error) {
	in := struct {
		ProjectID string      `json:"projectId"`
		Amount    json.Number `json:"amount"`
	}{projectID, number(amount)}
	var out struct {
		Project Project `json:"project"`
	}
	err := a.c.Post(ctx, "/donations", in, &out)
	return out.Project, err
}

func (a *API) UserDonations(ctx context.Context) ([]Donation, error) {
	var out []Donation
	err := a.c.Get(ctx, "/donations/user", &out)
	return out, err
}

// CreateCheckoutSession returns the processor's checkout session id.
func (a *API) CreateCheckoutSession(ctx context.Context, in CheckoutRequest) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	err := a.c.Post(ctx, "/payments/create-checkout-session", in, &out)
	return out.SessionID, err
}

// VerifyPayment reports whether the checkout session completed successfully.
func (a *API) VerifyPayment(ctx context.Context, sessionID string) (bool, error) {
	in := struct {
		SessionID string `json:"sessionId"`
	}{sessionID}
	var out struct {
		Success bool `json:"success"`
	}
	err := a.c.Post(ctx, "/payments/verify-payment", in, &out)
	return out.Success, err
}

// number renders an amount as a bare JSON number.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
