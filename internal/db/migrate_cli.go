package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 || args[0] == "help" {
		PrintMigrateHelp(w)
		if len(args) < 1 {
			return fmt.Errorf("missing migrate action")
		}
		return nil
	}

	// Open without migrating: the schema is what this command manages.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		return printVersion(w, database)

	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		return printVersion(w, database)

	case "version":
		if len(args) < 2 {
			return printVersion(w, database)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateTo(uint(v)); err != nil {
			return err
		}
		return printVersion(w, database)

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: corrida migrate force <version>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
		return printVersion(w, database)

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(w io.Writer, database *DB) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema version %d", version)
	if dirty {
		fmt.Fprint(w, " (dirty)")
	}
	fmt.Fprintln(w)
	return nil
}

func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: corrida migrate <action> [args]

Actions:
  up              apply all pending migrations
  down            roll back the most recent migration
  version [N]     print the schema version, or migrate up or down to N
  force N         mark the schema as version N without running migrations
  help            show this message
`)
}
