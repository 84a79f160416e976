package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/service"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin tokens",
		Long:  "Mint the bearer tokens operators use against the key-management API. Tokens are signed with the server's admin secret; no server round trip is needed.",
	}

	cmd.AddCommand(newTokenCreateCmd())

	return cmd
}

// ---------- token create ----------

func newTokenCreateCmd() *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a signed admin token",
		Example: `  scry token create --name alice
  SCRY_AUTH_JWT_SECRET=... scry token create --name ci-admin --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenCreate(name, ttl)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Operator name recorded on every action taken with the token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "How long the token stays valid")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runTokenCreate(name string, ttl time.Duration) error {
	secret := viper.GetString("auth.jwt_secret")
	if secret == "" {
		// Interactive fallback: ask for the secret without echoing it.
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no admin secret configured (set auth.jwt_secret or SCRY_AUTH_JWT_SECRET)")
		}
		fmt.Print("Admin secret: ")
		secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		fmt.Println()
		secret = string(secretBytes)
		if secret == "" {
			return fmt.Errorf("admin secret must not be empty")
		}
	}

	token, err := service.NewAdminAuth(secret).IssueToken(name, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println("Admin token created:")
	fmt.Println()
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Printf("  Operator: %s\n", name)
	fmt.Printf("  Expires:  %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Use it as 'Authorization: Bearer <token>' against /api/v1/projects/{project}/keys.")
	return nil
}
