package main

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit"
	"github.com/goliatone/go-formkit/pkg/api"
	"github.com/goliatone/go-formkit/pkg/form"
	"github.com/goliatone/go-formkit/pkg/notify"
	"github.com/goliatone/go-formkit/pkg/prompt"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			values := map[string]any{}
			var skip []string
			if username != "" {
				values["username"] = username
				skip = append(skip, "username")
			}
			if password != "" {
				values["password"] = password
				skip = append(skip, "password")
			}
			s := formkit.MustSchema("login")
			if len(skip) < 2 {
				filled, err := prompt.Fill(ctx, a.driver, s,
					prompt.WithDefaults(values),
					prompt.WithSkip(skip...),
					prompt.WithSecrets("password"),
				)
				if err != nil {
					return err
				}
				values = filled
			}
			if res := s.Validate(values); !res.Valid {
				return fmt.Errorf("login: %s %s", res.Issues[0].Path, res.Issues[0].Message)
			}
			user, _ := values["username"].(string)
			pass, _ := values["password"].(string)
			if err := a.session.Login(ctx, a.client, user, pass); err != nil {
				var apiErr *api.Error
				if errors.As(err, &apiErr) {
					return fmt.Errorf("login failed: %s", apiErr.UserMessage())
				}
				return err
			}
			printf(cmd.OutOrStdout(), "Logged in as %s\n", user)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the backend and forget the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := api.IgnoreStatusCodes(a.session.Logout(cmd.Context(), a.client), http.StatusUnauthorized); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Logged out\n")
			return nil
		},
	}
}

var passwordFields = []string{"oldPassword", "newPassword", "confirmNewPassword"}

func newPasswordCmd(a *app) *cobra.Command {
	var current, next, confirm, otp string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			s := formkit.MustSchema("change-password")

			values := map[string]any{}
			var skip []string
			for name, v := range map[string]string{
				"oldPassword":        current,
				"newPassword":        next,
				"confirmNewPassword": confirm,
				"otpCode":            otp,
			} {
				if v != "" {
					values[name] = v
					skip = append(skip, name)
				}
			}
			if len(skip) < len(s.Fields()) {
				filled, err := prompt.Fill(ctx, a.driver, s,
					prompt.WithDefaults(values),
					prompt.WithSkip(skip...),
					prompt.WithSecrets(passwordFields...),
				)
				if err != nil {
					return err
				}
				values = filled
			}

			c := form.New(s, form.SubmitFunc(a.client.ChangePassword),
				form.WithValues(values),
				form.WithRawFields(passwordFields...),
				form.WithNotifier(notify.NewLogNotifier(a.logger)),
				form.WithLogger(a.logger),
			)
			defer c.Close()
			if err := c.Submit(ctx); err != nil {
				return reportFormFailure(cmd, c.Snapshot(), err)
			}
			printf(cmd.OutOrStdout(), "Password changed\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "old", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "new password again")
	cmd.Flags().StringVar(&otp, "otp", "", "six digit one-time code")
	return cmd
}

// reportFormFailure prints field errors in path order and returns a short
// error for cobra.
func reportFormFailure(cmd *cobra.Command, state form.State, err error) error {
	out := cmd.ErrOrStderr()
	paths := make([]string, 0, len(state.Errors))
	for p := range state.Errors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		printf(out, "  %s: %s\n", p, state.Errors[p])
	}
	if errors.Is(err, form.ErrInvalid) {
		return errors.New("form has invalid fields")
	}
	if state.FormError != "" {
		return errors.New(state.FormError)
	}
	return err
}
