package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"annotator/internal/app"
	"annotator/internal/config"
)

func main() {
	cfg := config.Load()
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	id := flag.String("id", "", "Re-render only this prediction")
	flag.Parse()

	cfg.DatabasePath = *dbPath
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		log.Fatalf("Database not found: %v", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	ctx := context.Background()
	if *id != "" {
		path, err := application.Manager().Rerender(ctx, *id)
		if err != nil {
			log.Fatalf("Failed to re-render %s: %v", *id, err)
		}
		fmt.Printf("Re-rendered %s to %s\n", *id, path)
		return
	}

	fmt.Printf("Re-rendering every prediction in %s\n", cfg.DatabasePath)
	done, err := application.Manager().RerenderAll(ctx)
	if err != nil {
		fmt.Printf("Re-rendered %d predictions with errors:\n%v\n", done, err)
		application.Close()
		os.Exit(1)
	}
	fmt.Printf("Successfully re-rendered %d predictions\n", done)
}
