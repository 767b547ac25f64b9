package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"vatfiling/cmd"
	"vatfiling/internal/config"
	"vatfiling/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		// Fall back to stderr console logging
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		// Logger settings from LOG_* variables
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting vatfiling")

	// Run the requested command; errors exit inside Execute
	cmd.Execute()

	// Only reached on success
	log.Debug().Msg("vatfiling finished")
	os.Exit(0)
}
