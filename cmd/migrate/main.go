// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate [-direction up|down] [-steps N].
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"ridehail-identity/internal/config"
	"ridehail-identity/internal/db/migrate"
	"ridehail-identity/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	steps := flag.Int("steps", 0, "Number of versions to move; 0 applies all")
	version := flag.Bool("version", false, "Print the applied schema version and exit")
	list := flag.Bool("list", false, "List embedded migration files and exit")
	flag.Parse()

	if *list {
		files, err := migrate.Files()
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.Env)

	if *version {
		v, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("migrate: version")
		}
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction, *steps); err != nil {
		log.Fatal().Err(err).Str("direction", *direction).Msg("migrate")
	}
}
