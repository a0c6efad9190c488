package project

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/pkg/logger"
)

// Dashboard summarizes what a signed-in user created and backed.
type Dashboard struct {
	User             fundapi.User       `json:"user"`
	Projects         []fundapi.Project  `json:"projects"`
	Donations        []fundapi.Donation `json:"donations"`
	ProjectsBacked   int                `json:"projectsBacked"`
	TotalContributed decimal.Decimal    `json:"totalContributed"`
}

// Dashboard refreshes the catalog and loads the user's donations.
// A nil user fails with ErrNotAuthenticated before any call is made.
func (c *Catalog) Dashboard(ctx context.Context, user *fundapi.User) (Dashboard, error) {
	if user == nil || user.ID == "" {
		return Dashboard{}, ErrNotAuthenticated
	}

	if _, err := c.Refresh(ctx); err != nil {
		return Dashboard{}, err
	}
	donations, err := c.api.UserDonations(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to fetch user donations", logger.UserID(user.ID), logger.Error(err))
		return Dashboard{}, newError("Error fetching donations", err)
	}

	total := decimal.Zero
	for _, d := range donations {
		total = total.Add(d.Amount)
	}
	if donations == nil {
		donations = []fundapi.Donation{}
	}
	mine := c.Mine(user.ID)
	if mine == nil {
		mine = []fundapi.Project{}
	}
	return Dashboard{
		User:             *user,
		Projects:         mine,
		Donations:        donations,
		ProjectsBacked:   len(donations),
		TotalContributed: total,
	}, nil
}
