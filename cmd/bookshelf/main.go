package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/kittclouds/bookshelf/internal/commands"
)

func main() {
	// A .env file is optional; BOOKSHELF_* variables may come from it.
	_ = godotenv.Load()

	if err := commands.New().Execute(); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}
