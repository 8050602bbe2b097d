// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/client"
	"github.com/VarshithSidhoju/sign-loginfull/internal/logging"
	"github.com/VarshithSidhoju/sign-loginfull/internal/session"
)

// clientEnv is what every client subcommand works with.
type clientEnv struct {
	session *session.Manager
	store   session.Store
	api     *client.Client
	prompt  *prompter
	json    bool
}

func openClientEnv(cmd *cobra.Command) (*clientEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	logger := logging.Setup("signlogin-client", version, logging.Options{
		Format: "text",
		Level:  slog.LevelWarn,
		Writer: cmd.ErrOrStderr(),
	})

	store, err := session.OpenSQLite(cmd.Context(), cfg.Client.SessionFile)
	if err != nil {
		return nil, err
	}
	mgr := session.NewManager(store, session.WithLogger(logger))
	if err := mgr.Hydrate(cmd.Context()); err != nil {
		_ = store.Close() //nolint:errcheck // hydrate error takes precedence
		return nil, err
	}

	api, err := client.New(cfg.Client.ServerURL, mgr,
		client.WithLogger(logger),
		client.WithUserAgent("signlogin/"+version))
	if err != nil {
		_ = store.Close() //nolint:errcheck // config error takes precedence
		return nil, err
	}

	asJSON, _ := cmd.Flags().GetBool("json") //nolint:errcheck // defined on the parent
	return &clientEnv{
		session: mgr,
		store:   store,
		api:     api,
		prompt:  newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()),
		json:    asJSON,
	}, nil
}

func (e *clientEnv) Close() {
	e.api.CloseIdleConnections()
	_ = e.store.Close() //nolint:errcheck // nothing left to flush
}

func (e *clientEnv) requireLogin() error {
	if !e.session.State().Authenticated {
		return oops.Code(session.CodeNotAuthenticated).
			Errorf("not logged in; run `signlogin client login` first")
	}
	return nil
}

// explain adds a hint to errors a user can act on.
func explain(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message == "not authorized" {
			return oops.Code("CLIENT_SESSION_EXPIRED").Wrapf(err, "session is no longer valid; log in again")
		}
	}
	return err
}

// clientCommand wraps run with environment setup and teardown.
func clientCommand(run func(cmd *cobra.Command, env *clientEnv) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		env, err := openClientEnv(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		return explain(run(cmd, env))
	}
}

// NewClientCmd creates the client command group.
func NewClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Use the API from the terminal",
		Long: `Register, log in and manage your profile against a signlogin server.
The session is kept in client.session_file between invocations.`,
	}
	cmd.PersistentFlags().String("server-url", "http://localhost:5000", "API base URL")
	cmd.PersistentFlags().String("session-file", "", "session database (default: XDG_STATE_HOME/signlogin/session.db)")
	cmd.PersistentFlags().Bool("json", false, "print JSON instead of text")

	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			if !env.session.State().Authenticated {
				cmd.Println("Not logged in")
				return nil
			}
			if err := env.session.Logout(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Logged out")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user from the stored session",
		Args:  cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			return env.printProfile(cmd.OutOrStdout(), *env.session.State().User)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "profile",
		Short: "Fetch your profile from the server",
		Args:  cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			p, err := env.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if err := env.session.UpdateUser(cmd.Context(), *p); err != nil {
				return err
			}
			return env.printProfile(cmd.OutOrStdout(), *p)
		}),
	})
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			if err := env.requireLogin(); err != nil {
				return err
			}
			users, err := env.api.Users(cmd.Context())
			if err != nil {
				return err
			}
			return env.printUsers(cmd.OutOrStdout(), users)
		}),
	})

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			var err error
			if name, err = env.prompt.valueOr(name, "Name"); err != nil {
				return err
			}
			if email, err = env.prompt.valueOr(email, "Email"); err != nil {
				return err
			}
			password, err := env.prompt.password("Password")
			if err != nil {
				return err
			}

			res, err := env.api.Register(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			if err := env.session.Login(cmd.Context(), res); err != nil {
				return err
			}
			cmd.Printf("Registered and logged in as %s <%s>\n", res.User.Name, res.User.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (prompted if empty)")
	cmd.Flags().StringVar(&email, "email", "", "email address (prompted if empty)")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			var err error
			if email, err = env.prompt.valueOr(email, "Email"); err != nil {
				return err
			}
			password, err := env.prompt.password("Password")
			if err != nil {
				return err
			}

			res, err := env.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := env.session.Login(cmd.Context(), res); err != nil {
				return err
			}
			cmd.Printf("Logged in as %s <%s>\n", res.User.Name, res.User.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "email address (prompted if empty)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var name, email string
	var changePassword bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name, email or password",
		Long: `Change profile fields. Only the fields you pass are sent; everything
else stays as it is.`,
		Args: cobra.NoArgs,
		RunE: clientCommand(func(cmd *cobra.Command, env *clientEnv) error {
			if err := env.requireLogin(); err != nil {
				return err
			}

			var update auth.ProfileUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("email") {
				update.Email = &email
			}
			if changePassword {
				pw, err := env.prompt.password("New password")
				if err != nil {
					return err
				}
				update.Password = &pw
			}
			if update.IsEmpty() {
				return oops.Code("NOTHING_TO_UPDATE").Errorf("pass at least one of --name, --email or --password")
			}

			p, err := env.api.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			if err := env.session.UpdateUser(cmd.Context(), *p); err != nil {
				return err
			}
			cmd.Println("Profile updated")
			return env.printProfile(cmd.OutOrStdout(), *p)
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().BoolVar(&changePassword, "password", false, "prompt for a new password")
	return cmd
}

func (e *clientEnv) printProfile(w io.Writer, p auth.Profile) error {
	if e.json {
		return writeJSON(w, p)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	_, _ = fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	_, _ = fmt.Fprintf(tw, "Member since:\t%s\n", p.CreatedAt.Local().Format(time.DateOnly))
	return tw.Flush()
}

func (e *clientEnv) printUsers(w io.Writer, users []auth.Profile) error {
	if e.json {
		if users == nil {
			users = []auth.Profile{}
		}
		return writeJSON(w, users)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tEMAIL\tJOINED")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Name, u.Email, u.CreatedAt.Local().Format(time.DateOnly))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
