// Command budgetwise-token mints a bearer token for local development and
// scripted API access. It signs with the same JWT_SECRET the server verifies.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"budgetwise/internal/auth"
	"budgetwise/internal/cli"
	"budgetwise/internal/config"
	"budgetwise/internal/core"
	"budgetwise/internal/log"
)

func main() {
	uid := flag.String("uid", "", "user id to put in the token subject (required)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to TOKEN_TTL")
	flag.Parse()

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg)

	if *uid == "" {
		flag.Usage()
		os.Exit(2)
	}
	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	a, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, lifetime)
	if err != nil {
		logger.Error("Cannot create authenticator", log.FieldError, err, "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	token, err := a.Issue(core.User{UID: *uid, Email: *email, DisplayName: *name})
	if err != nil {
		logger.Error("Cannot issue token", log.FieldError, err, log.FieldUserID, *uid)
		os.Exit(1)
	}

	logger.Debug("Token issued",
		log.FieldUserID, *uid,
		"expires_at", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
