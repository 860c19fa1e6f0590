package config

import (
	"log"

	"github.com/joho/godotenv"
)

// Load charge le fichier .env s'il existe. Toute la configuration passe
// ensuite par os.Getenv, avec des valeurs par défaut locales.
func Load() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️ Pas de fichier .env, configuration via l'environnement système")
		return
	}
	log.Println("✅ Configuration .env chargée")
}
