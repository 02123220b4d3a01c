// cmd/console/auth.go
package main

import (
	"fmt"
	"strings"

	"marketplace-console/internal/session"

	"github.com/spf13/cobra"
)

var (
	emailFlag    string
	passwordFlag string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := console.session.Login(cmd.Context(), emailFlag, passwordFlag)
		if err != nil {
			return console.reportAuth("login", err)
		}
		fmt.Fprintf(console.out, "Signed in as %s\n", describeUser(user))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := console.session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(console.out, "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Validate the stored token and show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := console.requireUser(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(console.out, describeUser(user))
		if len(user.RolePermissions) > 0 {
			fmt.Fprintf(console.out, "permissions: %s\n", strings.Join(user.RolePermissions, ", "))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&emailFlag, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&passwordFlag, "password", "", "Account password (required)")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")
}

func describeUser(u *session.User) string {
	if u == nil {
		return "not signed in"
	}
	flags := []string{string(u.Role)}
	if u.IsStaff() {
		flags = append(flags, "staff")
	}
	return fmt.Sprintf("%s <%s> [%s]", u.DisplayName(), u.Email, strings.Join(flags, ", "))
}

// reportAuth routes session failures through the toast reporter so they are
// printed once with the server's message.
func (a *app) reportAuth(op string, err error) error {
	a.toasts.Error(describe(err))
	a.log.Warn("auth command failed", map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	})
	return err
}
