package main

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/zip-ingest/pkg/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// defaultWidth is the display width of column defaults in the layout table.
const defaultWidth = 20

func newDBCheckCmd(a *app) *cobra.Command {
	var ensure bool

	cmd := &cobra.Command{
		Use:   "dbcheck",
		Short: "Verify the restaurant table in Postgres",
		Long: `Connect to DATABASE_URL, check that the zipbusiness_restaurants table exists
and print its column layout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if a.cfg.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}

			pool, err := store.OpenPool(ctx, store.PostgresConfig{
				DSN:        a.cfg.Database.URL,
				Schema:     a.cfg.Database.Schema,
				MaxConns:   1,
				ViaBouncer: a.cfg.Database.ViaBouncer,
			})
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			pg := store.NewPostgres(pool, a.cfg.Database.Schema)
			defer pg.Close()
			fmt.Fprintln(out, "Database connection OK")

			if ensure {
				if err := pg.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			info, err := pg.Verify(ctx)
			if errors.Is(err, store.ErrTableMissing) {
				return fmt.Errorf("%w in schema %q, rerun with --ensure to create it", err, a.cfg.Database.Schema)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nTable %s.%s\n", info.Schema, info.Table)
			fmt.Fprintln(out, columnTable(info.Columns))
			fmt.Fprintf(out, "Total columns: %d\n", len(info.Columns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&ensure, "ensure", false, "Create the table if it does not exist")
	return cmd
}

func columnTable(cols []store.Column) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Column", "Type", "Nullable", "Default")

	for _, c := range cols {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		t.Row(c.Name, c.TypeString(), nullable, c.DefaultString(defaultWidth))
	}
	return t.String()
}
