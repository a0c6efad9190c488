package backer_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
)

const validToken = "tok-ada"

var ada = fundapi.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}

// fakeAPI is an in-memory stand-in for the crowdfunding backend.
type fakeAPI struct {
	mu        sync.Mutex
	projects  []fundapi.Project
	donations []fundapi.Donation
	sessions  int
	verify    map[string]bool
	verifies  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		projects: []fundapi.Project{{
			ID:            "p1",
			Title:         "Community Garden",
			Description:   "Raised beds for the block",
			GoalAmount:    decimal.NewFromInt(1000),
			CurrentAmount: decimal.NewFromInt(100),
			EndDate:       time.Now().Add(30 * 24 * time.Hour),
			Creator:       fundapi.Ref{ID: "u2", Name: "Grace"},
			Backers:       []fundapi.Backer{},
		}},
		verify: map[string]bool{},
	}
}

func (f *fakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/users/login", f.login)
		r.Post("/users/register", f.register)
		r.Get("/users/me", f.authed(func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, ada) }))
		r.Get("/projects", f.listProjects)
		r.Get("/projects/{id}", f.getProject)
		r.Post("/projects", f.authed(f.createProject))
		r.Post("/donations", f.authed(f.donate))
		r.Get("/donations/user", f.authed(f.userDonations))
		r.Post("/payments/create-checkout-session", f.authed(f.createSession))
		r.Post("/payments/verify-payment", f.verifyPayment)
	})
	return r
}

func (f *fakeAPI) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token is not valid"})
			return
		}
		next(w, r)
	}
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in struct{ Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Email != ada.Email || in.Password != "secret" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": validToken, "user": ada})
}

func (f *fakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var in struct{ Name, Email, Password string }
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Email == ada.Email {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": validToken,
		"user":  fundapi.User{ID: "u3", Name: in.Name, Email: in.Email},
	})
}

func (f *fakeAPI) listProjects(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.projects)
}

func (f *fakeAPI) getProject(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.find(chi.URLParam(r, "id")); ok {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Project not found"})
}

func (f *fakeAPI) createProject(w http.ResponseWriter, r *http.Request) {
	var in fundapi.Project
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	in.ID = fmt.Sprintf("p%d", len(f.projects)+1)
	in.Creator = fundapi.Ref{ID: ada.ID, Name: ada.Name}
	in.Backers = []fundapi.Backer{}
	f.projects = append(f.projects, in)
	writeJSON(w, http.StatusCreated, in)
}

func (f *fakeAPI) donate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProjectID string          `json:"projectId"`
		Amount    decimal.Decimal `json:"amount"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.projects {
		if f.projects[i].ID == in.ProjectID {
			f.projects[i].CurrentAmount = f.projects[i].CurrentAmount.Add(in.Amount)
			f.projects[i].Backers = append(f.projects[i].Backers, fundapi.Backer{User: fundapi.Ref{ID: ada.ID}, Amount: in.Amount})
			f.donations = append(f.donations, fundapi.Donation{
				ID:      fmt.Sprintf("d%d", len(f.donations)+1),
				Project: fundapi.Ref{ID: in.ProjectID, Title: f.projects[i].Title},
				Amount:  in.Amount,
			})
			writeJSON(w, http.StatusOK, map[string]any{"project": f.projects[i]})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Project not found"})
}

func (f *fakeAPI) userDonations(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.donations)
}

func (f *fakeAPI) createSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SuccessURL string `json:"successUrl"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if !strings.Contains(in.SuccessURL, "{CHECKOUT_SESSION_ID}") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "successUrl must carry the session placeholder"})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	id := fmt.Sprintf("cs_%d", f.sessions)
	f.verify[id] = true
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": id})
}

func (f *fakeAPI) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	writeJSON(w, http.StatusOK, map[string]bool{"success": f.verify[in.SessionID]})
}

func (f *fakeAPI) find(id string) (fundapi.Project, bool) {
	for _, p := range f.projects {
		if p.ID == id {
			return p, true
		}
	}
	return fundapi.Project{}, false
}

func (f *fakeAPI) verifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifies
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
