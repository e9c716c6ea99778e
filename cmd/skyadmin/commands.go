package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	adminclient "github.com/skykeenentreprise/admin-client"
)

type runFunc func(ctx context.Context, cmd *cobra.Command, args []string) error

// withSession bounds the command by --timeout and logs in before running fn.
func (a *app) withSession(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
		defer cancel()
		if err := a.login(ctx); err != nil {
			return err
		}
		return fn(ctx, cmd, args)
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show the current authentication state",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			resp, err := a.client.CheckAuth(ctx)
			if err != nil {
				return err
			}
			return a.render(cmd, resp, "")
		}),
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the admin session",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			resp, err := a.client.Logout(ctx)
			if err != nil {
				return err
			}
			return a.render(cmd, resp, "logged out")
		}),
	}
}

func newRegistrationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "registrations",
		Aliases: []string{"reg"},
		Short:   "List, inspect, verify and delete registrations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registrations",
		Args:  cobra.NoArgs,
		RunE: a.withSession(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			resp, err := a.client.GetRegistrations(ctx)
			if err != nil {
				return err
			}
			return a.render(cmd, resp, "")
		}),
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one registration",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.GetRegistration(ctx, id)
			if err != nil {
				return err
			}
			return a.render(cmd, resp, "")
		}),
	}

	var (
		verified bool
		notes    string
	)
	verify := &cobra.Command{
		Use:   "verify ID",
		Short: "Mark the payment of a registration as verified or not",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var notesArg *string
			if cmd.Flags().Changed("notes") {
				notesArg = &notes
			}
			resp, err := a.client.VerifyPayment(ctx, id, verified, notesArg)
			if err != nil {
				return err
			}
			return a.render(cmd, resp, fmt.Sprintf("registration %d updated", id))
		}),
	}
	verify.Flags().BoolVar(&verified, "verified", true, "payment verified flag")
	verify.Flags().StringVar(&notes, "notes", "", "optional notes")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a registration",
		Args:  cobra.ExactArgs(1),
		RunE: a.withSession(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.client.DeleteRegistration(ctx, id)
			if err != nil {
				return err
			}
			return a.render(cmd, resp, fmt.Sprintf("registration %d deleted", id))
		}),
	}

	cmd.AddCommand(list, get, verify, del)
	return cmd
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid registration id %q", s)
	}
	return id, nil
}

// describeError adds a hint for the statuses an operator can act on.
func describeError(err error) string {
	switch adminclient.StatusCode(err) {
	case http.StatusUnauthorized:
		return err.Error() + " (not logged in: pass --email and --password)"
	case http.StatusForbidden:
		return err.Error() + " (forbidden: session or CSRF token rejected)"
	case http.StatusNotFound:
		return err.Error() + " (not found)"
	}
	return err.Error()
}
