package main

import (
	"log"

	"annotator/internal/app"
	"annotator/internal/config"
)

func main() {
	application, err := app.NewApp(config.Load())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	if err := application.Run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
