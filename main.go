package main

import (
	"os"

	"github.com/antibyte/minipl/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; JWT_SECRET_KEY may come from the environment.
	_ = godotenv.Load()
	os.Exit(cmd.Execute())
}
