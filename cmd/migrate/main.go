package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"shopdesk-realtime/config"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const usage = `
shopdesk-realtime - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update tables (GORM) and apply SQL migrations
  status      Show database connection status and table row counts
  seed-dev    Insert the guest desk account and a few staff/customer accounts

Flags:
  -migrations string   Path to migrations directory (default "migrations")
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)

	switch command := flag.Arg(0); command {
	case "up":
		runMigrationsUp(db, *migrationsDir)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB, migrationsDir string) {
	log.Println("Running migrations UP...")

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("GORM migration failed: %v", err)
	}
	applied, err := database.ApplyRawMigrations(db, migrationsDir)
	if err != nil {
		log.Fatalf("SQL migration failed: %v", err)
	}
	for _, name := range applied {
		log.Printf("Applied %s", name)
	}

	log.Println("Migrations completed successfully")
}

func showStatus(db *gorm.DB) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, model := range database.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			log.Printf("Cannot resolve table for %T: %v", model, err)
			continue
		}
		table := stmt.Schema.Table
		if !db.Migrator().HasTable(table) {
			log.Printf("Table %-22s does not exist", table)
			continue
		}
		var count int64
		db.Table(table).Count(&count)
		log.Printf("Table %-22s exists (%d rows)", table, count)
	}
}

func runSeedDevelopment(db *gorm.DB, cfg *config.Config) {
	deskID, err := uuid.Parse(cfg.GuestDeskUserID)
	if err != nil {
		log.Fatalf("GUEST_DESK_USER_ID is not a uuid: %v", err)
	}
	accounts := []user.Account{
		{ID: deskID, Name: "Guest Desk", IsStaff: true},
		{ID: uuid.New(), Name: "Sam (support)", IsStaff: true},
		{ID: uuid.New(), Name: "Alice"},
		{ID: uuid.New(), Name: "Bob"},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts).Error; err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	for _, a := range accounts {
		log.Printf("Account %s  %-16s staff=%t", a.ID, a.Name, a.IsStaff)
	}
}
