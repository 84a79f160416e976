package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/model"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage upload API keys",
		Long:    "Create, list, and revoke the project-scoped API keys CI pipelines use to upload builds. Operates directly on the configured credential store.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// operator names the acting user for the store's audit fields.
func operator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		project     string
		name        string
		expiresDays int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key scoped to a project. The raw key is shown once and cannot be retrieved again.",
		Example: `  scry key create --project web-app --name "CI pipeline"
  scry key create --project web-app --name "preview bot" --expires-days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(project, name, expiresDays)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project the key is scoped to (required)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable name for the key (required)")
	cmd.Flags().IntVar(&expiresDays, "expires-days", 0, "Days until the key expires (0 = never)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyCreate(project, name string, expiresDays int) error {
	store, err := openKeyStore()
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	params := apikey.IssueParams{
		DisplayName: name,
		IssuedBy:    operator(),
	}
	if expiresDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, expiresDays)
		params.ExpiresAt = &t
	}

	rec, rawKey, err := store.Issue(context.Background(), project, params)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:     %s\n", rawKey)
	fmt.Printf("  Project: %s\n", project)
	fmt.Printf("  Name:    %s\n", rec.DisplayName)
	fmt.Printf("  ID:      %s\n", rec.ID)
	if rec.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", rec.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		project    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a project's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(project, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project to list keys for (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("project")

	return cmd
}

func runKeyList(project string, jsonOutput bool) error {
	store, err := openKeyStore()
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	keys, err := store.List(context.Background(), project)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Printf("No API keys for project %q. Use 'scry key create' to create one.\n", project)
		return nil
	}

	fmt.Printf("%-14s %-24s %-9s %-17s %s\n", "PREFIX", "NAME", "STATUS", "CREATED", "ID")
	fmt.Printf("%-14s %-24s %-9s %-17s %s\n", "------", "----", "------", "-------", "--")
	for _, k := range keys {
		fmt.Printf("%-14s %-24s %-9s %-17s %s\n",
			k.Prefix, k.DisplayName, k.Status, k.CreatedAt.Format("2006-01-02 15:04"), k.ID)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key by its id",
		Long:  "Mark an API key revoked, rejecting any further uploads with that key. A unique leading fragment of the id is enough.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(project, args[0])
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project the key belongs to (required)")
	cmd.MarkFlagRequired("project")

	return cmd
}

func runKeyRevoke(project, idArg string) error {
	store, err := openKeyStore()
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	keys, err := store.List(ctx, project)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	// Resolve the argument to exactly one key id.
	var matched []model.APIKey
	for _, k := range keys {
		if k.ID == idArg {
			matched = []model.APIKey{k}
			break
		}
		if strings.HasPrefix(k.ID, idArg) {
			matched = append(matched, k)
		}
	}
	if len(matched) == 0 {
		return fmt.Errorf("no API key in project %q matches id %q", project, idArg)
	}
	if len(matched) > 1 {
		return fmt.Errorf("id %q is ambiguous: matches %d keys", idArg, len(matched))
	}

	if err := store.Revoke(ctx, project, matched[0].ID, operator()); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key %s (%s)\n", matched[0].ID, matched[0].DisplayName)
	return nil
}
