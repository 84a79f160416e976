package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Work with the API specification",
	}

	cmd.AddCommand(newOpenAPIExportCmd())

	return cmd
}

// ---------- openapi export ----------

func newOpenAPIExportCmd() *cobra.Command {
	var (
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the OpenAPI 3.1 specification",
		Long:  "Generate the OpenAPI specification the server serves at /openapi.json, without starting a server.",
		Example: `  scry openapi export                                  # spec to stdout
  scry openapi export -o scry-api.json                 # spec to a file
  scry openapi export --base-url https://sb.corp.dev   # with a server URL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPIExport(baseURL, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL advertised in the spec (default from server.base_url)")

	return cmd
}

func runOpenAPIExport(baseURL, outputFile string) error {
	if baseURL == "" {
		baseURL = viper.GetString("server.base_url")
	}

	doc := openapi.GenerateSpec(baseURL, versionString())

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	out = append(out, '\n')

	if outputFile != "" {
		if err := os.WriteFile(outputFile, out, 0644); err != nil {
			return fmt.Errorf("write spec: %w", err)
		}
		fmt.Printf("Wrote OpenAPI spec to %s\n", outputFile)
		return nil
	}

	os.Stdout.Write(out)
	return nil
}
