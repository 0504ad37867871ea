// Command devtoken mints a session token for manual testing against a local server.
//
//	go run ./cmd/devtoken -id u1 -email me@example.com -name "Me" | xargs -I{} \
//	  curl -H "Authorization: Bearer {}" localhost:8080/records
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/diewo77/field-reports/auth"
	"github.com/diewo77/field-reports/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	id := flag.String("id", "dev-user", "user id (token subject)")
	email := flag.String("email", "dev@example.com", "user email")
	name := flag.String("name", "Dev User", "display name")
	admin := flag.Bool("admin", false, "set the is_admin claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	v := auth.NewVerifier(cfg.Auth.SessionSecret, nil)
	tok, err := v.IssueToken(auth.Principal{ID: *id, Email: *email, Name: *name, IsAdmin: *admin}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
