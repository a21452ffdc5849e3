package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/database"
	"github.com/lently/lently_go_server/internal/pkg/cron"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/service"
)

var (
	resetQuota  = flag.Bool("reset-quota", false, "Reset monthly analysis quota for all users")
	repairStale = flag.Bool("repair-stale", true, "Mark stuck analyses as failed")
	staleHours  = flag.Int("stale-hours", 1, "Hours before a queued/processing analysis is considered stuck")
)

func main() {
	flag.Parse()

	log.Println("Starting maintenance task...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	quotaService := service.NewQuotaService(userRepo, cfg)
	cronService := cron.NewService(quotaService, analysisRepo, time.Duration(*staleHours)*time.Hour)

	if *repairStale {
		repaired := cronService.RepairStaleAnalyses()
		log.Printf("Repaired %d stuck analyses", repaired)
	}

	if *resetQuota {
		if err := cronService.RunNow(); err != nil {
			log.Fatalf("Quota reset failed: %v", err)
		}
		log.Println("Monthly quota reset completed")
	}

	log.Println("Maintenance task finished")
}
