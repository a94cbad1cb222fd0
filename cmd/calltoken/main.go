// Command calltoken mints a call-context token the way the platform does when
// it proxies a UI or API call to the extension. It is meant for local testing:
//
//	curl -H "Authorization: Bearer $(calltoken -installation-id EIN-1)" localhost:8080/api/chart
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"chart-extension/internal/auth"
	"chart-extension/internal/models"

	"github.com/peterbourgon/ff/v3"
)

func main() {
	var (
		secret     string
		secretFile string
		ttl        time.Duration
		cc         models.CallContext
	)
	fs := flag.NewFlagSet("calltoken", flag.ExitOnError)
	fs.StringVar(&secret, "jwt-secret", "", "Secret shared with the platform")
	fs.StringVar(&secretFile, "jwt-secret-file", "", "File holding the shared secret (used when -jwt-secret is empty)")
	fs.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	fs.StringVar(&cc.InstallationID, "installation-id", "", "Installation the call is made for (required)")
	fs.StringVar(&cc.AccountID, "account-id", "", "Calling account")
	fs.StringVar(&cc.UserID, "user-id", "", "Calling user")
	fs.StringVar(&cc.EnvironmentID, "environment-id", "", "Extension environment")

	// JWT_SECRET and JWT_SECRET_FILE match the server's variables.
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarNoPrefix()); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(1)
	}

	if secret == "" && secretFile != "" {
		data, err := os.ReadFile(secretFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read secret: %v\n", err)
			os.Exit(1)
		}
		secret = strings.TrimSpace(string(data))
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "-jwt-secret or -jwt-secret-file is required")
		os.Exit(2)
	}
	if cc.InstallationID == "" {
		fmt.Fprintln(os.Stderr, "-installation-id is required")
		os.Exit(2)
	}

	token, err := auth.New([]byte(secret)).IssueToken(cc, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
