// Package main is the entry point for the lakeshare CLI binary.
package main

import (
	"log"
	"os"

	"github.com/lakeshare/lakeshare/internal/config"
	"github.com/lakeshare/lakeshare/pkg/cli"
)

func main() {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	os.Exit(cli.Execute())
}
