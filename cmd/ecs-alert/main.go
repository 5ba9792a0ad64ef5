package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ecs-alert/ecs-alert/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=..."
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cli.SetVersion(version, date, commit)
	os.Exit(cli.Execute())
}
