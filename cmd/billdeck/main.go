package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/arlo/billdeck/internal/config"
	"github.com/arlo/billdeck/internal/engine"
	"github.com/arlo/billdeck/internal/extract"
	"github.com/arlo/billdeck/internal/localdb"
	"github.com/arlo/billdeck/internal/recur"
	"github.com/arlo/billdeck/internal/remote"
	"github.com/arlo/billdeck/internal/store"
	"github.com/arlo/billdeck/internal/tui"
	"github.com/arlo/billdeck/internal/undo"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	if err := os.MkdirAll(filepath.Dir(cfg.Log.Path), 0o755); err != nil {
		log.Fatalf("mkdir log dir: %v", err)
	}
	logFile, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("open log file: %v", err)
	}
	defer logFile.Close()
	logger.SetOutput(logFile)
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}
	if err := localdb.RunMigrations(cfg.Database.Path, "internal/localdb/migrations"); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := localdb.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	bills := store.New()
	backend := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.RemoteToken(), logger)
	undoer := undo.New(time.Duration(cfg.Undo.WindowSeconds) * time.Second)

	notify := func(msg string) { logger.Info(msg) }
	eng := engine.New(bills, backend, undoer, logger, notify)

	router := &extract.Router{
		Scanner:   extract.NewHTTPScanner(cfg.Extract.BaseURL, cfg.ExtractToken(), logger),
		Queue:     extract.NewQueueRepo(db),
		Create:    eng.CreateImported,
		Threshold: cfg.Extract.AutoThreshold,
		Log:       logger,
	}
	dismissals := recur.NewDismissalRepo(db)

	app := tui.New(ctx, eng, router, dismissals, tui.ScanConfig{
		MaxResults: cfg.Extract.MaxResults,
		DaysBack:   cfg.Extract.DaysBack,
	})
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}
