package utils

import (
	"github.com/joho/godotenv"
	"github.com/waconnect/pkg/logger"
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		// Don't fail if .env file doesn't exist
		// Environment variables can be provided via Docker Compose or system
		logger.Get().Info(".env file not found, using system environment variables")
	}
}
