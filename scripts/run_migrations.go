package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safar/congress-merch/internal/config"
	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/logger"
)

const migrationDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		logger.Fatalf("usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		logger.Fatalf("direction must be 'up' or 'down'")
	}

	dbCfg := config.LoadDatabase()
	db, err := database.NewConnection(context.Background(), &dbCfg)
	if err != nil {
		logger.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	files, err := migrationFiles(migrationDir, direction)
	if err != nil {
		logger.Fatalf("read migrations: %v", err)
	}

	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			logger.Fatalf("read migration %s: %v", filename, err)
		}

		logger.Infof("[MIGRATE] running %s", filename)
		if _, err := db.Exec(string(content)); err != nil {
			logger.Fatalf("execute migration %s: %v", filename, err)
		}
	}

	logger.Infof("[MIGRATE] ran %d migration(s) %s", len(files), direction)
}

// migrationFiles lists *.up.sql in order, or *.down.sql in reverse order.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}
