package main

import (
	"flag"
	"sort"

	"github.com/mikepea/projectdesk/pkg/projectdesk/config"
	"github.com/mikepea/projectdesk/pkg/projectdesk/database"
	"github.com/mikepea/projectdesk/pkg/projectdesk/migrations"
	"github.com/shrimpsizemoose/trekker/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (default $CONFIG_FILE or ./config.toml)")
	status := flag.Bool("status", false, "list applied and pending migrations without running them")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		logger.Error.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Open(cfg.DBURL)
	if err != nil {
		logger.Error.Fatalf("Failed to connect to database: %v", err)
	}

	if *status {
		applied, err := migrations.Applied(db)
		if err != nil {
			logger.Error.Fatalf("Failed to read migrations: %v", err)
		}
		ids := make([]string, 0, len(applied))
		for id := range applied {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			logger.Info.Printf("applied  %s", id)
		}
		for _, m := range migrations.All() {
			if !applied[m.ID] {
				logger.Info.Printf("pending  %s", m.ID)
			}
		}
		return
	}

	ran, err := migrations.Run(db)
	if err != nil {
		logger.Error.Fatalf("Migration failed after %d steps: %v", ran, err)
	}
	logger.Info.Printf("Applied %d migrations", ran)
}
