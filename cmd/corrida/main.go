package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pereirasil/corrida-app-sub000/internal/config"
	"github.com/pereirasil/corrida-app-sub000/internal/db"
	"github.com/pereirasil/corrida-app-sub000/internal/export"
	"github.com/pereirasil/corrida-app-sub000/internal/fsutil"
	"github.com/pereirasil/corrida-app-sub000/internal/terrain"
	"github.com/pereirasil/corrida-app-sub000/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbPath     = flag.String("db", "corrida.db", "Session database path")
	configPath = flag.String("config", "", "Tracker config JSON file (defaults apply when empty)")
	port       = flag.String("port", "", "Serial port of the GPS receiver; empty disables the receiver")
	serialOpts = flag.String("serial", "9600,8N1", "Receiver line settings as BAUD[,FRAMING]")
	replay     = flag.String("replay", "", "Replay fixes from a JSON file instead of a receiver")
	exportDir  = flag.String("export-dir", "exports", "Directory for FIT exports")
	noStore    = flag.Bool("no-store", false, "Do not keep finished sessions")
)

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: corrida [flags] [serve | migrate <cmd> | export <session-id>... | version]\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		if *listen == "" {
			log.Fatal("Listen address is required")
		}
		if err := serve(); err != nil {
			log.Fatal(err)
		}
	case "migrate":
		if err := db.RunMigrateCommand(os.Stdout, args, *dbPath); err != nil {
			log.Fatal(err)
		}
	case "export":
		if err := runExport(os.Stdout, *dbPath, *exportDir, args); err != nil {
			log.Fatal(err)
		}
	case "version":
		fmt.Println(version.Get())
	default:
		usage()
		os.Exit(2)
	}
}

// loadSettings reads the tracker config, or returns the defaults when path
// is empty.
func loadSettings(path string) (*config.TrackerConfig, error) {
	if path == "" {
		return config.EmptyTrackerConfig(), nil
	}
	return config.LoadTrackerConfig(path)
}

// loadClassifier builds the terrain classifier from the built-in geofences
// plus the optional file named in settings.
func loadClassifier(settings *config.TrackerConfig) (*terrain.Classifier, error) {
	fences := terrain.DefaultGeofences()
	if path := settings.GetGeofencesPath(); path != "" {
		extra, err := terrain.LoadGeofences(path)
		if err != nil {
			return nil, err
		}
		fences = fences.Merge(extra)
	}
	return terrain.NewClassifier(fences, settings.GetCorridorRadius()), nil
}

// runExport writes a FIT file for each stored session in ids.
func runExport(w io.Writer, dbPath, dir string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("export needs at least one session id")
	}
	database, err := db.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	for _, id := range ids {
		s, err := database.GetSession(context.Background(), id)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
		path, err := export.SaveFIT(fsutil.OSFileSystem{}, dir, s)
		if err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
		fmt.Fprintf(w, "%s -> %s\n", id, path)
	}
	return nil
}
