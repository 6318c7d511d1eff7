package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/storefront"
	"github.com/giantswarm/storefront/storage/sqlstore"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the catalog database schema",
		Long: `Create or upgrade the catalog and order tables in the database named by
DATABASE_DRIVER and DATABASE_DSN. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := rootOpts.Logger(cmd.ErrOrStderr())

			config, err := storefront.LoadConfig(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if config.Database.Driver == "" {
				return errors.New("no database configured: set DATABASE_DRIVER and DATABASE_DSN")
			}

			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, sqlstore.Config{
				Driver: config.Database.Driver,
				DSN:    config.Database.DSN,
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
