package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/fundkit/svc/project"
)

func (c *cli) projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Browse and create projects",
	}
	cmd.AddCommand(c.projectsListCmd(), c.projectsShowCmd(), c.projectsCreateCmd())
	return cmd
}

func (c *cli) projectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.app.catalog.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return c.out.projects(list)
		},
	}
}

func (c *cli) projectsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project and its backers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.app.catalog.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.out.project(p)
		},
	}
}

func (c *cli) projectsCreateCmd() *cobra.Command {
	var (
		form    project.Form
		goal    string
		endDate string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.app.requireUser(); err != nil {
				return err
			}
			var err error
			if form.GoalAmount, err = decimal.NewFromString(goal); err != nil {
				return fmt.Errorf("invalid --goal %q: %w", goal, err)
			}
			if form.EndDate, err = time.ParseInLocation(time.DateOnly, endDate, time.Local); err != nil {
				return fmt.Errorf("invalid --end-date %q, want YYYY-MM-DD: %w", endDate, err)
			}
			p, err := c.app.catalog.Create(cmd.Context(), form)
			if err != nil {
				return err
			}
			return c.out.project(p)
		},
	}
	cmd.Flags().StringVarP(&form.Title, "title", "t", "", "project title")
	cmd.Flags().StringVarP(&form.Description, "description", "d", "", "what the money is for")
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "funding goal")
	cmd.Flags().StringVar(&endDate, "end-date", "", "last day of the campaign (YYYY-MM-DD)")
	cmd.Flags().StringVar(&form.ImageURL, "image-url", "", "optional cover image URL")
	for _, name := range []string{"title", "description", "goal", "end-date"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
