package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		log.Print("DB_URL is required")
		return 1
	}

	dir, err := migrationsDir()
	if err != nil {
		log.Printf("locate migrations: %v", err)
		return 1
	}

	m, err := migrate.New("file://"+filepath.ToSlash(dir), dbURL)
	if err != nil {
		log.Printf("create migrator: %v", err)
		return 1
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("close migrator: source=%v db=%v", srcErr, dbErr)
		}
	}()

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Printf("migrate up: %v", err)
			return 1
		}
		log.Printf("schema up to date (migrations=%s)", dir)
	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps <= 0 {
				log.Printf("invalid step count %q", args[1])
				return 2
			}
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Printf("migrate down: %v", err)
			return 1
		}
		log.Printf("rolled back %d migration(s)", steps)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			return 0
		}
		if err != nil {
			log.Printf("read version: %v", err)
			return 1
		}
		fmt.Printf("version: %d dirty: %t\n", version, dirty)
	case "force":
		if len(args) < 2 {
			log.Print("force requires a version argument")
			return 2
		}
		version, err := strconv.Atoi(args[1])
		if err != nil || version < 0 {
			log.Printf("invalid version %q", args[1])
			return 2
		}
		if err := m.Force(version); err != nil {
			log.Printf("force version %d: %v", version, err)
			return 1
		}
		log.Printf("forced version to %d", version)
	default:
		usage()
		return 2
	}

	return 0
}

// migrationsDir prefers an explicit MIGRATIONS_DIR, then the in-repo
// default, then the path baked into the container image.
func migrationsDir() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		"./db/migrations",
		"/app/db/migrations",
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("no migrations directory found (set MIGRATIONS_DIR or run from the repo root)")
}

func usage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <up|down [n]|version|force <v>>\n", prog)
}
