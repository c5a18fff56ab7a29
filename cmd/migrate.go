package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/schemaproof/internal/store"
)

var migrateFromSQLite string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the drift store schema",
	Long: "Creates the drift_records table and indexes for the configured store. With " +
		"--from-sqlite, also copies every record of a SQLite drift database into Postgres.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("drift store schema applied", zap.String("driver", cfg.Store.Driver))

		if migrateFromSQLite == "" {
			return nil
		}
		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return eris.Errorf("migrate: --from-sqlite needs the postgres driver, got %q", cfg.Store.Driver)
		}

		src, err := store.NewSQLite(migrateFromSQLite)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		recs, err := src.Records(ctx)
		if err != nil {
			return err
		}
		n, err := pg.Import(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "migrate: import records")
		}

		zap.L().Info("drift records imported",
			zap.String("from", migrateFromSQLite),
			zap.Int64("records", n),
		)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFromSQLite, "from-sqlite", "", "SQLite drift database to copy into Postgres")
	rootCmd.AddCommand(migrateCmd)
}
