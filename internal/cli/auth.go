package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			res, err := a.api.Login(cmd.Context(), models.LoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			return a.saveSession(cmd, res)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and save the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" || name == "" {
				return errors.New("--email, --password and --name are required")
			}
			res, err := a.api.Register(cmd.Context(), models.RegisterRequest{Email: email, Password: password, FullName: name})
			if err != nil {
				return err
			}
			return a.saveSession(cmd, res)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (min 8 characters)")
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token and clear the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			if err := a.backend.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func (a *app) saveSession(cmd *cobra.Command, res *models.LoginResponse) error {
	ctx := cmd.Context()
	if err := a.session.Save(ctx, session{Token: res.AccessToken, Email: res.User.Email, Name: res.User.FullName}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	// Cached data belongs to the previous account.
	if err := a.backend.Clear(ctx); err != nil {
		a.logger.Warn("failed to clear cache after sign-in", zap.Error(err))
	}
	a.api.SetToken(res.AccessToken)
	if a.jsonOutput() {
		return printJSON(cmd.OutOrStdout(), res.User)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", res.User.Email)
	return nil
}
