package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptgate/promptgate/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long:  "Generate the OpenAPI 3.1 specification for the promptgate API and print it or write it to a file.",
		Example: `  promptgate openapi                    # print to stdout
  promptgate openapi -o openapi.json    # write to file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(baseURL, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Server URL to embed in the spec")

	return cmd
}

func runOpenAPI(baseURL, outputFile string) error {
	doc := openapi.Generate(baseURL)

	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	if outputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("write spec: %w", err)
	}
	fmt.Printf("Wrote %s\n", outputFile)
	return nil
}
