package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptgate/promptgate/internal/config"
	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/store"
)

func newImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import prompt templates and keyword rules from a YAML seed file",
		Long: `Load a declarative YAML bundle of prompt templates and keyword rules into
the store. Existing rows (same identity) are skipped, so re-running an import
is safe.`,
		Example: `  promptgate import --file seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file path (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(file string) error {
	seed, err := config.LoadSeed(file)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := cmdContext()
	templateIDs := make(map[string]int64, len(seed.Templates))
	var created, skipped int

	for _, tpl := range seed.Templates {
		version := tpl.Version
		if version == 0 {
			version = 1
		}
		row := &model.PromptTemplate{
			Name:    tpl.Name,
			Content: tpl.Content,
			Version: version,
			Locale:  tpl.Locale,
			Status:  model.RuleActive,
		}
		if err := st.CreatePromptTemplate(ctx, row); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("create template %q: %w", tpl.Name, err)
			}
			skipped++
			existing, err := findTemplate(ctx, st, tpl.Name, version, tpl.Locale)
			if err != nil {
				return err
			}
			templateIDs[tpl.Name] = existing
			continue
		}
		created++
		templateIDs[tpl.Name] = row.ID
	}

	for _, kw := range seed.Keywords {
		row := &model.KeywordPrompt{
			Keyword:          kw.Keyword,
			IsRegex:          kw.IsRegex,
			Locale:           kw.Locale,
			PromptTemplateID: templateIDs[kw.Template],
			Status:           model.RuleActive,
		}
		if err := st.CreateKeywordPrompt(ctx, row); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("create keyword %q: %w", kw.Keyword, err)
			}
			skipped++
			continue
		}
		created++
	}

	fmt.Printf("Imported %d rows (%d already present).\n", created, skipped)
	return nil
}

// findTemplate resolves an already-present template's ID by identity.
func findTemplate(ctx context.Context, st *store.Store, name string, version int, locale string) (int64, error) {
	templates, err := st.ListPromptTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}
	for _, tpl := range templates {
		if tpl.Name == name && tpl.Version == version && tpl.Locale == locale {
			return tpl.ID, nil
		}
	}
	return 0, fmt.Errorf("template %q (v%d, locale %q) conflicted but was not found", name, version, locale)
}
