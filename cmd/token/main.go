// Command token mints development JWTs for connecting to the sync engine.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"duplex/auth"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

func main() {
	userID := flag.String("user", "", "User id to mint a token for")
	duration := flag.Duration("duration", 24*time.Hour, "Token validity")
	flag.Parse()

	if *userID == "" {
		log.Fatal("missing -user")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	token, err := auth.GenerateToken([]byte(cfg.JWTSecret), *userID, *duration)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	color.Green.Printf("Token for %s (valid %s):\n", *userID, *duration)
	fmt.Println(token)
}
