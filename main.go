package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"tentatek/internal/back"
	"tentatek/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

// Version holds the build-time version string.
var Version = "unknown" // nolint:gochecknoglobals

func main() {
	flag.Parse()

	conf, err := config.NewFromUserConfigDir()
	if err != nil {
		log.Fatalf("error: unable to load configuration: %s", err)
	}

	switch flag.Arg(0) {
	case "version":
		fmt.Fprintf(os.Stdout, "Tentatek %s\n", Version)
	case "migrate":
		if err := migrateDatabase(conf); err != nil {
			log.Fatalf("error: %s", err)
		}
	case "serve":
		b, err := back.New("sqlite3", conf.SQLPath, conf)
		if err != nil {
			log.Fatalf("error: %s", err)
		}
		if err := serve(b, conf); err != nil {
			log.Fatalf("error: %s", err)
		}
	case "dev:fixtures":
		b, err := back.New("sqlite3", conf.SQLPath, conf)
		if err != nil {
			log.Fatalf("error: %s", err)
		}
		if err := b.LoadFixtures(); err != nil {
			log.Fatalf("error: %s", err)
		}
	case "help":
		fmt.Fprint(os.Stdout, help())
		return
	default:
		fmt.Fprint(os.Stderr, help())
		os.Exit(1)
	}
}

func help() string {
	return fmt.Sprintf(`
Tentatek runs the dual-confirmation match reporting and tournament
summarization backend of a competitive ladder.

Usage: %[1]s COMMAND [ARGS…]

COMMANDS
    dev:fixtures create default data for quick testing during development
    help         display this help
    migrate      apply all pending database migrations
    serve        start the HTTP API
    version      display the current version
`,
		os.Args[0],
	)
}
