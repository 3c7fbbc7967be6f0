package envHelper

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file from the working directory into the process
// environment. Variables already set in the environment win.
func LoadEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		// Not fatal, the environment may be complete without it
		log.Println("Couldn't load .env file:", err)
	}
}
