package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/2lu3/tetsumon-dayori/internal/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Connect to PostgreSQL and apply the embedded schema.

Reads the DSN from --postgres-dsn, POSTGRES_DSN, or the config file.
Statements are idempotent, so running it twice is harmless.`,
	RunE: runMigrate,
}

func runMigrate(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, viper.GetString("postgres_dsn"))
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, pool)
	for _, f := range applied {
		fmt.Printf("applied %s\n", f)
	}
	if err != nil {
		return err
	}
	fmt.Println("migrations complete")
	return nil
}
