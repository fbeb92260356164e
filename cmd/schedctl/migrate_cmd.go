package main

import (
	"github.com/spf13/cobra"

	"github.com/dfberenson/ob-resident-scheduler/pkg/database"
)

type migrateOutput struct {
	Command string `json:"command"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
}

func newMigrateCmd(open func() (*env, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	run := func(name string, fn func(e *env) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			if fn != nil {
				if err := fn(e); err != nil {
					return err
				}
			}
			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			version, dirty, err := database.MigrationVersion(sqlDB)
			if err != nil {
				return err
			}
			return writeJSON(c.OutOrStdout(), migrateOutput{Command: "migrate " + name, Version: version, Dirty: dirty})
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: run("up", func(e *env) error {
			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return database.RunMigrations(sqlDB, e.logger)
		}),
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: run("down", func(e *env) error {
			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return database.RollbackMigrations(sqlDB, steps, e.logger)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚步数")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		RunE:  run("version", nil),
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
