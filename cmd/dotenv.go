// dotenv.go - .env Datei aus ~/.taesd laden
// Hauptfunktionen: LoadDotEnv
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/7blacky7/ollama-taesd/envconfig"
)

// LoadDotEnv laedt ~/.taesd/.env falls vorhanden.
// Bereits gesetzte Variablen werden nicht ueberschrieben.
func LoadDotEnv() error {
	dir := envconfig.Home()
	if dir == "" {
		return nil
	}
	return loadDotEnvFile(filepath.Join(dir, ".env"))
}

func loadDotEnvFile(envPath string) error {
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check if .env file exists: %w", err)
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("could not load %s: %w", envPath, err)
	}

	return nil
}
