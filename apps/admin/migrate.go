package main

import (
	"fmt"

	"github.com/trezcool/goose"

	"github.com/trezcool/peergrade/storage/database"
)

func (cli *commandLine) migrate(args []string) error {
	switch cmd := args[0]; cmd {
	case "up":
		return goose.Up(cli.db, database.MigrationsFS, "migrations")
	case "down":
		return goose.Down(cli.db, database.MigrationsFS, "migrations")
	case "redo":
		return goose.Redo(cli.db, database.MigrationsFS, "migrations")
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
}
