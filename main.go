package main

import (
	"github.com/joho/godotenv"

	"jobscraps/cmd"
)

func main() {
	// Optional .env for PGPASSWORD, SCRAPE_API_TOKEN, VAULT_* settings.
	_ = godotenv.Load()
	cmd.Execute()
}
