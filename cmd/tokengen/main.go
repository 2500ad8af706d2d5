// Command tokengen mints a bearer token for a user using the server's
// secret key and token validity settings.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/tradesync/internal/server/auth"
	"github.com/dmitrijs2005/tradesync/internal/server/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tokengen <user-id> [server flags]")
		os.Exit(2)
	}
	userID := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.SecretKey == "" {
		// opaque mode: the user id is the token
		fmt.Println(userID)
		return
	}

	token, err := auth.GenerateToken(userID, []byte(cfg.SecretKey), cfg.TokenValidityDuration)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
