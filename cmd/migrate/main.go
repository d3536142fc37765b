package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ignite/paybench/internal/config"
	"github.com/ignite/paybench/internal/repository/postgres"

	_ "github.com/lib/pq"
)

// Usage: migrate [--list] [dir]
//
// Without dir the schema embedded in the binary is applied.
func main() {
	cfg, err := config.LoadFromEnv("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := ""
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if listOnly {
		tables, err := postgres.ListTables(ctx, db)
		if err != nil {
			log.Fatal(err)
		}
		for _, t := range tables {
			fmt.Println(" ", t)
		}
		fmt.Printf("Total: %d of %d tables\n", len(tables), len(postgres.Tables))
		return
	}

	var migrations []postgres.Migration
	if dir != "" {
		migrations, err = postgres.Migrations(os.DirFS(dir))
	} else {
		migrations, err = postgres.EmbeddedMigrations()
	}
	if err != nil {
		log.Fatalf("read migrations: %v", err)
	}

	err = postgres.Apply(ctx, db, migrations, func(name string) {
		fmt.Printf("  %s ... OK\n", name)
	})
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("Migrations complete: %d applied", len(migrations))
}
