// Command devtoken signs an access token with JWT_SECRET, standing in for
// the admin system's session during local development.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"shopdesk-realtime/config"
	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/services"

	"github.com/google/uuid"
)

func main() {
	id := flag.String("user", "", "user id (random when empty)")
	name := flag.String("name", "Dev User", "display name")
	avatar := flag.String("avatar", "", "avatar URL")
	staff := flag.Bool("staff", false, "issue a staff identity")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	userID := uuid.New()
	if *id != "" {
		parsed, err := uuid.Parse(*id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(2)
		}
		userID = parsed
	}

	cfg := config.LoadConfig()
	token, err := services.NewAuthService(cfg.JWTSecret, *ttl).IssueAccessToken(user.Profile{
		ID:     userID,
		Name:   *name,
		Avatar: *avatar,
		Staff:  *staff,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
