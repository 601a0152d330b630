// Command gen-token prints a bearer token for local and test auth modes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/api"
)

func main() {
	user := flag.String("user", "dev-user", "user id placed in the sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
	if secret == "" {
		secret = os.Getenv("TEST_JWT_SECRET")
	}
	if secret == "" {
		log.Fatal("set LOCAL_AUTH_SHARED_SECRET or TEST_JWT_SECRET")
	}
	token, err := api.SignTestToken([]byte(secret), *user, *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Print(token)
}
