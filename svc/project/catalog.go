// Package project keeps the client-side read model of crowdfunding projects.
package project

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/pkg/validator"
)

// Backend is the subset of the API the catalog calls.
type Backend interface {
	Projects(ctx context.Context) ([]fundapi.Project, error)
	Project(ctx context.Context, id string) (fundapi.Project, error)
	CreateProject(ctx context.Context, in fundapi.NewProject) (fundapi.Project, error)
	UserDonations(ctx context.Context) ([]fundapi.Donation, error)
}

// Form is the input to Create.
type Form struct {
	Title       string
	Description string
	GoalAmount  decimal.Decimal
	EndDate     time.Time
	ImageURL    string
}

// Catalog is a concurrency-safe cache of projects in display order.
// Every read returns a deep copy.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]fundapi.Project
	order []string

	api    Backend
	logger *slog.Logger
	now    func() time.Time
}

func NewCatalog(api Backend, opts ...Option) *Catalog {
	c := &Catalog{
		items:  make(map[string]fundapi.Project),
		api:    api,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("catalog"))
	return c
}

// Refresh replaces the catalog with the backend's project list.
func (c *Catalog) Refresh(ctx context.Context) ([]fundapi.Project, error) {
	list, err := c.api.Projects(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to fetch projects", logger.Error(err))
		return nil, newError("Error fetching projects", err)
	}

	items := make(map[string]fundapi.Project, len(list))
	order := make([]string, 0, len(list))
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		if _, dup := items[p.ID]; !dup {
			order = append(order, p.ID)
		}
		items[p.ID] = p.Clone()
	}

	c.mu.Lock()
	c.items, c.order = items, order
	c.mu.Unlock()

	return c.List(), nil
}

// Load fetches one project and caches it.
func (c *Catalog) Load(ctx context.Context, id string) (fundapi.Project, error) {
	p, err := c.api.Project(ctx, id)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to fetch project", logger.ProjectID(id), logger.Error(err))
		return fundapi.Project{}, newError("Error fetching project", err)
	}
	if p.ID == "" {
		p.ID = id
	}
	c.Replace(p)
	return p.Clone(), nil
}

// Create validates the form, creates the project and puts it first in the list.
func (c *Catalog) Create(ctx context.Context, form Form) (fundapi.Project, error) {
	form.Title = strings.TrimSpace(form.Title)
	if err := validator.Apply(
		validator.RequiredString("title", form.Title),
		validator.RequiredString("description", form.Description),
		validator.PositiveAmount("goalAmount", form.GoalAmount),
		validator.MaxDecimalPlaces("goalAmount", form.GoalAmount, 2),
		validator.FutureDate("endDate", form.EndDate),
		validator.OptionalURL("imageUrl", form.ImageURL),
	); err != nil {
		return fundapi.Project{}, err
	}

	p, err := c.api.CreateProject(ctx, fundapi.NewProject{
		Title:       form.Title,
		Description: strings.TrimSpace(form.Description),
		GoalAmount:  form.GoalAmount,
		EndDate:     form.EndDate,
		ImageURL:    strings.TrimSpace(form.ImageURL),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to create project", logger.Error(err))
		return fundapi.Project{}, newError("Error creating project", err)
	}

	c.mu.Lock()
	if _, ok := c.items[p.ID]; !ok {
		c.order = slices.Insert(c.order, 0, p.ID)
	}
	c.items[p.ID] = p.Clone()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "project created", logger.ProjectID(p.ID))
	return p.Clone(), nil
}

// List returns all cached projects in display order.
func (c *Catalog) List() []fundapi.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]fundapi.Project, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id].Clone())
	}
	return out
}

func (c *Catalog) Get(id string) (fundapi.Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.items[id]
	if !ok {
		return fundapi.Project{}, false
	}
	return p.Clone(), true
}

// Clear evicts one project from the cache.
func (c *Catalog) Clear(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
}

// Mine returns the cached projects created by userID.
func (c *Catalog) Mine(userID string) []fundapi.Project {
	if userID == "" {
		return nil
	}
	return slices.DeleteFunc(c.List(), func(p fundapi.Project) bool {
		return p.Creator.ID != userID
	})
}

// Credit adds a verified contribution to a cached project and appends one
// backer entry. It returns ErrNotFound when the project is not cached.
func (c *Catalog) Credit(projectID string, backer fundapi.Ref, amount decimal.Decimal) (fundapi.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.items[projectID]
	if !ok {
		return fundapi.Project{}, ErrNotFound
	}
	p = p.Clone()
	p.CurrentAmount = p.CurrentAmount.Add(amount)
	p.Backers = append(p.Backers, fundapi.Backer{User: backer, Amount: amount, Date: c.now()})
	c.items[projectID] = p
	return p.Clone(), nil
}

// Replace swaps in a backend-confirmed project, appending it if unknown.
func (c *Catalog) Replace(p fundapi.Project) {
	if p.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.items[p.ID] = p.Clone()
}
