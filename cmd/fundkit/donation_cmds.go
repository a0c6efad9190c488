package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fundkit/pkg/checkout"
	"github.com/dmitrymomot/fundkit/pkg/logger"
	"github.com/dmitrymomot/fundkit/svc/donation"
)

func (c *cli) donateCmd() *cobra.Command {
	var (
		amount string
		noQR   bool
	)
	cmd := &cobra.Command{
		Use:   "donate <project-id>",
		Short: "Open a hosted checkout for a donation",
		Long: "Creates a checkout session and prints the payment page URL. After paying, " +
			"the processor sends you to APP_BASE_URL/success; run `fundkit serve` to " +
			"confirm the payment there, or pass that URL to `fundkit reconcile`.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseAmount(amount)
			if err != nil {
				return err
			}
			// Best effort so the processor shows the project title.
			_, _ = c.app.catalog.Load(cmd.Context(), args[0])

			h, err := c.app.coord.Initiate(cmd.Context(), donation.NewIntent(args[0], value))
			if err != nil {
				return err
			}
			var qr string
			if !noQR && c.format == formatTable {
				if qr, err = checkout.RenderQR(h.RedirectURL); err != nil {
					c.app.log.WarnContext(cmd.Context(), "failed to render qr code", logger.Error(err))
				}
			}
			return c.out.handoff(h, qr)
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount to donate")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "do not print a QR code")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	var (
		returnURL string
		sessionID string
		projectID string
		amount    string
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Confirm a completed checkout and credit the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				rc  donation.ReturnContext
				err error
			)
			switch {
			case returnURL != "":
				rc, err = donation.ReturnContextFromURL(returnURL)
			case sessionID != "":
				rc = donation.ReturnContext{SessionID: sessionID, ProjectID: projectID}
				if amount != "" {
					rc.Amount, err = parseAmount(amount)
					if err != nil {
						err = errors.Join(donation.ErrInvalidReturnContext, err)
					}
				}
			default:
				return errors.New("pass --return-url or --session-id with --project-id and --amount")
			}
			if err != nil {
				return err
			}
			if rc.ProjectID != "" {
				// Load the project so the verified amount is credited locally.
				_, _ = c.app.catalog.Load(cmd.Context(), rc.ProjectID)
			}
			res, err := c.app.coord.Reconcile(cmd.Context(), rc)
			if err != nil {
				return err
			}
			return c.out.reconcile(res)
		},
	}
	cmd.Flags().StringVar(&returnURL, "return-url", "", "the full success URL the processor redirected to")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "checkout session id")
	cmd.Flags().StringVar(&projectID, "project-id", "", "project the payment was for")
	cmd.Flags().StringVar(&amount, "amount", "", "amount that was paid")
	cmd.MarkFlagsMutuallyExclusive("return-url", "session-id")
	return cmd
}

func (c *cli) giveCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "give <project-id>",
		Short: "Record a donation directly, without a hosted checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseAmount(amount)
			if err != nil {
				return err
			}
			p, err := c.app.coord.AddDonation(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}
			return c.out.project(p)
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount to donate")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize your projects and donations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.requireUser()
			if err != nil {
				return err
			}
			d, err := c.app.catalog.Dashboard(cmd.Context(), user)
			if err != nil {
				return err
			}
			return c.out.dashboard(d)
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
