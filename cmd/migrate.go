package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-health/pkg/database"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the engine store schema.",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openEngineStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return migrateUp(db, cfg.Database.MigrationsPath, logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back applied migrations.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openEngineStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		sqlDB := db.SQLDB()
		defer sqlDB.Close()
		return database.RollbackMigrations(sqlDB, cfg.Database.MigrationsPath, migrateSteps, logger)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openEngineStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		sqlDB := db.SQLDB()
		defer sqlDB.Close()
		v, dirty, err := database.MigrationVersion(sqlDB, cfg.Database.MigrationsPath, logger)
		if err != nil {
			return err
		}
		if dirty {
			cmd.Printf("version %d (dirty)\n", v)
			return nil
		}
		cmd.Printf("version %d\n", v)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
