package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/fundkit/pkg/fundapi"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/donation"
	"github.com/dmitrymomot/fundkit/svc/project"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type printer struct {
	w      io.Writer
	format string
	unit   currency.Unit
	now    func() time.Time
}

func newPrinter(w io.Writer, format string, unit currency.Unit) (*printer, error) {
	switch format {
	case formatTable, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q: want table, json or yaml", format)
	}
	return &printer{w: w, format: format, unit: unit, now: time.Now}, nil
}

// print writes v as JSON or YAML, or calls table for the default format.
func (p *printer) print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func (p *printer) money(d decimal.Decimal) string {
	return formatMoney(d, p.unit)
}

func formatMoney(d decimal.Decimal, unit currency.Unit) string {
	return message.NewPrinter(language.English).Sprint(currency.Symbol(unit.Amount(d.InexactFloat64())))
}

type sessionOut struct {
	Status        string     `json:"status" yaml:"status"`
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	User          *userOut   `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

type userOut struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

func newSessionOut(s auth.Snapshot) sessionOut {
	out := sessionOut{Status: s.Status.String(), Authenticated: s.IsAuthenticated()}
	if s.Identity != nil {
		out.User = &userOut{ID: s.Identity.ID, Name: s.Identity.Name, Email: s.Identity.Email}
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

func (p *printer) session(s auth.Snapshot) error {
	out := newSessionOut(s)
	return p.print(out, func(tw *tabwriter.Writer) {
		if out.User == nil {
			fmt.Fprintln(tw, "Not logged in.")
			return
		}
		fmt.Fprintf(tw, "User:\t%s <%s>\n", out.User.Name, out.User.Email)
		fmt.Fprintf(tw, "ID:\t%s\n", out.User.ID)
		fmt.Fprintf(tw, "Status:\t%s\n", out.Status)
		if out.ExpiresAt != nil {
			fmt.Fprintf(tw, "Expires:\t%s\n", out.ExpiresAt.Local().Format(time.DateTime))
		}
	})
}

type backerOut struct {
	Name   string          `json:"name" yaml:"name"`
	Amount decimal.Decimal `json:"amount" yaml:"amount"`
	Date   string          `json:"date,omitempty" yaml:"date,omitempty"`
}

type projectOut struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Goal        decimal.Decimal `json:"goalAmount" yaml:"goalAmount"`
	Raised      decimal.Decimal `json:"currentAmount" yaml:"currentAmount"`
	Progress    decimal.Decimal `json:"progress" yaml:"progress"`
	DaysLeft    int             `json:"daysLeft" yaml:"daysLeft"`
	EndDate     string          `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Creator     string          `json:"creator,omitempty" yaml:"creator,omitempty"`
	Backers     []backerOut     `json:"backers" yaml:"backers"`
}

func (p *printer) projectOut(pr fundapi.Project) projectOut {
	out := projectOut{
		ID:          pr.ID,
		Title:       pr.Title,
		Description: pr.Description,
		Goal:        pr.GoalAmount,
		Raised:      pr.CurrentAmount,
		Progress:    pr.Progress(),
		DaysLeft:    pr.DaysLeft(p.now()),
		Creator:     firstNonEmpty(pr.Creator.Name, pr.Creator.ID),
		Backers:     make([]backerOut, 0, len(pr.Backers)),
	}
	if !pr.EndDate.IsZero() {
		out.EndDate = pr.EndDate.Format(time.DateOnly)
	}
	for _, b := range pr.Backers {
		bo := backerOut{Name: firstNonEmpty(b.User.Name, b.User.ID, "anonymous"), Amount: b.Amount}
		if !b.Date.IsZero() {
			bo.Date = b.Date.Format(time.DateOnly)
		}
		out.Backers = append(out.Backers, bo)
	}
	return out
}

func (p *printer) projects(list []fundapi.Project) error {
	out := make([]projectOut, 0, len(list))
	for _, pr := range list {
		out = append(out, p.projectOut(pr))
	}
	return p.print(out, func(tw *tabwriter.Writer) {
		if len(out) == 0 {
			fmt.Fprintln(tw, "No projects yet.")
			return
		}
		fmt.Fprintln(tw, "ID\tTITLE\tRAISED\tGOAL\tPROGRESS\tDAYS LEFT")
		for _, o := range out {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%%\t%d\n",
				o.ID, o.Title, p.money(o.Raised), p.money(o.Goal), o.Progress.String(), o.DaysLeft)
		}
	})
}

func (p *printer) project(pr fundapi.Project) error {
	o := p.projectOut(pr)
	return p.print(o, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Title:\t%s\n", o.Title)
		fmt.Fprintf(tw, "ID:\t%s\n", o.ID)
		if o.Creator != "" {
			fmt.Fprintf(tw, "Creator:\t%s\n", o.Creator)
		}
		fmt.Fprintf(tw, "Raised:\t%s of %s (%s%%)\n", p.money(o.Raised), p.money(o.Goal), o.Progress.String())
		if o.EndDate != "" {
			fmt.Fprintf(tw, "Ends:\t%s (%d days left)\n", o.EndDate, o.DaysLeft)
		}
		if o.Description != "" {
			fmt.Fprintf(tw, "\n%s\n", o.Description)
		}
		if len(o.Backers) > 0 {
			fmt.Fprintf(tw, "\nBACKER\tAMOUNT\tDATE\n")
			for _, b := range o.Backers {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, p.money(b.Amount), b.Date)
			}
		}
	})
}

type handoffOut struct {
	SessionID   string `json:"sessionId" yaml:"sessionId"`
	RedirectURL string `json:"redirectUrl" yaml:"redirectUrl"`
	Status      string `json:"status" yaml:"status"`
	ProjectID   string `json:"projectId" yaml:"projectId"`
	Amount      string `json:"amount" yaml:"amount"`
}

func (p *printer) handoff(h donation.Handoff, qr string) error {
	out := handoffOut{
		SessionID:   h.Session.ID,
		RedirectURL: h.RedirectURL,
		Status:      h.Session.Status.String(),
		ProjectID:   h.Session.Intent.ProjectID,
		Amount:      h.Session.Intent.Amount.String(),
	}
	return p.print(out, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Complete your donation of %s at:\n\n  %s\n", p.money(h.Session.Intent.Amount), out.RedirectURL)
		if qr != "" {
			fmt.Fprintf(tw, "\n%s\n", qr)
		}
		fmt.Fprintf(tw, "Checkout session:\t%s\n", out.SessionID)
	})
}

type reconcileOut struct {
	Outcome   string      `json:"outcome" yaml:"outcome"`
	SessionID string      `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	ProjectID string      `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	Amount    string      `json:"amount,omitempty" yaml:"amount,omitempty"`
	Project   *projectOut `json:"project,omitempty" yaml:"project,omitempty"`
}

func (p *printer) reconcile(res donation.Result) error {
	out := reconcileOut{
		Outcome:   res.Outcome.String(),
		SessionID: res.Session.ID,
		ProjectID: res.Session.Intent.ProjectID,
	}
	if res.Session.Intent.Amount.IsPositive() {
		out.Amount = res.Session.Intent.Amount.String()
	}
	if res.Project != nil {
		po := p.projectOut(*res.Project)
		out.Project = &po
	}
	return p.print(out, func(tw *tabwriter.Writer) {
		switch res.Outcome {
		case donation.OutcomeVerified:
			fmt.Fprintf(tw, "Thank you! Your donation of %s was confirmed.\n", p.money(res.Session.Intent.Amount))
			if out.Project != nil {
				fmt.Fprintf(tw, "%s has now raised %s of %s.\n",
					out.Project.Title, p.money(out.Project.Raised), p.money(out.Project.Goal))
			}
		case donation.OutcomeAlreadyReconciled:
			fmt.Fprintln(tw, "This payment has already been processed.")
		case donation.OutcomeNoActiveSession:
			fmt.Fprintln(tw, "No payment to confirm.")
		default:
			fmt.Fprintln(tw, "Payment verification failed.")
		}
	})
}

type donationOut struct {
	Project string          `json:"project" yaml:"project"`
	Amount  decimal.Decimal `json:"amount" yaml:"amount"`
	Date    string          `json:"date,omitempty" yaml:"date,omitempty"`
}

type dashboardOut struct {
	User             userOut         `json:"user" yaml:"user"`
	Projects         []projectOut    `json:"projects" yaml:"projects"`
	Donations        []donationOut   `json:"donations" yaml:"donations"`
	ProjectsBacked   int             `json:"projectsBacked" yaml:"projectsBacked"`
	TotalContributed decimal.Decimal `json:"totalContributed" yaml:"totalContributed"`
}

func (p *printer) dashboard(d project.Dashboard) error {
	out := dashboardOut{
		User:             userOut{ID: d.User.ID, Name: d.User.Name, Email: d.User.Email},
		Projects:         make([]projectOut, 0, len(d.Projects)),
		Donations:        make([]donationOut, 0, len(d.Donations)),
		ProjectsBacked:   d.ProjectsBacked,
		TotalContributed: d.TotalContributed,
	}
	for _, pr := range d.Projects {
		out.Projects = append(out.Projects, p.projectOut(pr))
	}
	for _, dn := range d.Donations {
		do := donationOut{Project: firstNonEmpty(dn.Project.Title, dn.Project.ID), Amount: dn.Amount}
		if !dn.Date.IsZero() {
			do.Date = dn.Date.Format(time.DateOnly)
		}
		out.Donations = append(out.Donations, do)
	}
	return p.print(out, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Welcome back, %s.\n\n", out.User.Name)
		fmt.Fprintf(tw, "Projects created:\t%d\n", len(out.Projects))
		fmt.Fprintf(tw, "Projects backed:\t%d\n", out.ProjectsBacked)
		fmt.Fprintf(tw, "Total contributed:\t%s\n", p.money(out.TotalContributed))
		if len(out.Projects) > 0 {
			fmt.Fprintln(tw, "\nYOUR PROJECTS\tRAISED\tGOAL")
			for _, o := range out.Projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Title, p.money(o.Raised), p.money(o.Goal))
			}
		}
		if len(out.Donations) > 0 {
			fmt.Fprintln(tw, "\nBACKED\tAMOUNT\tDATE")
			for _, o := range out.Donations {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Project, p.money(o.Amount), o.Date)
			}
		}
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
