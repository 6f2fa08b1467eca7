// migrate applies the token_sessions schema; use with go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"session-authority/internal/config"
	"session-authority/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	status := flag.Bool("status", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; the token_sessions table only exists in Postgres")
		os.Exit(1)
	}

	if *status {
		st, err := migrate.Status(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		fmt.Println("token_sessions schema at version", st)
		return
	}

	res, err := migrate.Apply(cfg.DatabaseURL, *direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Println(res)
}
