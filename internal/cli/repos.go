package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"devinflow/internal/catalog"
)

func newReposCommand(app *App) *cobra.Command {
	var (
		catalogPath string
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List the repo aliases in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.Config.Repo.CatalogPath
			if cmd.Flags().Changed("catalog") {
				path = catalogPath
			}
			if path == "" {
				return errors.New("no repo catalog configured; pass --catalog or set repo.catalog_path")
			}

			cat, err := catalog.ReadFromFile(path)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), cat.Entries())
			}

			app.Printer.Text("%d repo aliases in %s", cat.Len(), path)
			for _, e := range cat.Entries() {
				if e.Description != "" {
					app.Printer.Text("  %-16s %s (%s)", e.Alias, e.Repo, e.Description)
					continue
				}
				app.Printer.Text("  %-16s %s", e.Alias, e.Repo)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "CSV file of repo aliases (default: repo.catalog_path)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the entries as JSON")
	return cmd
}
