// cmd/migrate applies or rolls back the account schema.
//
//	migrate up | down | version
//
// DB_ADDR is read from the environment or .env.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/baechuer/lms-auth-service/internal/config"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/lms-auth-service/internal/logger"
)

type migrator struct {
	Up      func(dsn string) error
	Down    func(dsn string) error
	Version func(dsn string) (uint, bool, error)
}

func run(args []string, dsn string, m migrator, out io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(out, "usage: migrate up|down|version")
		return 2
	}
	if dsn == "" {
		logger.Logger.Error().Msg("missing required env var: DB_ADDR")
		return 1
	}

	switch args[0] {
	case "up":
		if err := m.Up(dsn); err != nil {
			logger.Logger.Error().Err(err).Msg("migrate up failed")
			return 1
		}
		logger.Logger.Info().Msg("migrations applied")
	case "down":
		if err := m.Down(dsn); err != nil {
			logger.Logger.Error().Err(err).Msg("migrate down failed")
			return 1
		}
		logger.Logger.Info().Msg("migrations rolled back")
	case "version":
		v, dirty, err := m.Version(dsn)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("read version failed")
			return 1
		}
		fmt.Fprintf(out, "version=%d dirty=%t\n", v, dirty)
	default:
		fmt.Fprintf(out, "unknown command %q\nusage: migrate up|down|version\n", args[0])
		return 2
	}
	return 0
}

func main() {
	config.LoadDotEnv()
	logger.Init()

	os.Exit(run(os.Args[1:], os.Getenv("DB_ADDR"), migrator{
		Up:      postgres.MigrateUp,
		Down:    postgres.MigrateDown,
		Version: postgres.MigrationVersion,
	}, os.Stdout))
}
