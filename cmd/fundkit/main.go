// Command fundkit is a terminal client for the crowdfunding backend and the
// host of its local web surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var errNotLoggedIn = errors.New("not logged in: run `fundkit login` first")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], loadConfig, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// run executes one command line and releases everything it opened.
func run(ctx context.Context, args []string, loadConfig func() (Config, error), stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{loadConfig: loadConfig}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		err = errors.Join(err, c.app.Close())
	}
	return err
}

// cli carries state shared by every command of one invocation.
type cli struct {
	loadConfig func() (Config, error)
	format     string

	app *app
	out *printer
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fundkit",
		Short:         "Back crowdfunding projects from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.format, "output", "o", formatTable, "output format: table, json or yaml")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.projectsCmd(),
		c.donateCmd(),
		c.reconcileCmd(),
		c.giveCmd(),
		c.dashboardCmd(),
		c.serveCmd(),
	)
	return root
}

// setup wires the services and restores the persisted session before any
// command runs.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.app = a

	if c.out, err = newPrinter(cmd.OutOrStdout(), c.format, a.unit); err != nil {
		return err
	}
	return a.bootstrap(cmd.Context(), cmd.ErrOrStderr())
}
