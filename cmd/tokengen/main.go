package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-verification/pkg/config"
	"github.com/tendant/simple-verification/pkg/tokengenerator"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load configuration", err)
	}

	secret := flag.String("secret", cfg.JWT.Secret, "Secret key for signing the token (defaults to JWT_SECRET)")
	issuer := flag.String("issuer", cfg.JWT.Issuer, "Issuer of the token")
	audience := flag.String("audience", cfg.JWT.Audience, "Audience of the token")
	subject := flag.String("subject", "operator", "Subject of the token")
	expiry := flag.Duration("expiry", cfg.JWT.AdminTokenExpiry, "Token expiry duration (e.g., 30m, 1h, 24h)")
	admin := flag.Bool("admin", true, "Grant the admin role")
	extraClaimsJSON := flag.String("claims", "{}", "Extra claims in JSON format")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	tokenGen := tokengenerator.NewJwtTokenGenerator(*secret, *issuer, *audience)

	var extraClaims map[string]interface{}
	if err := json.Unmarshal([]byte(*extraClaimsJSON), &extraClaims); err != nil {
		fail("Failed to parse extra claims JSON", err)
	}
	if extraClaims == nil {
		extraClaims = map[string]interface{}{}
	}
	if *admin {
		extraClaims["roles"] = []string{tokengenerator.AdminRole}
	}

	tokenStr, expiryTime, err := tokenGen.GenerateToken(*subject, *expiry, extraClaims)
	if err != nil {
		fail("Failed to generate token", err)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		token, err := tokenGen.ParseToken(tokenStr)
		if err != nil {
			fail("Failed to parse generated token", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			fail("Failed to get claims from token", fmt.Errorf("unexpected claims type %T", token.Claims))
		}

		fmt.Printf("=== Token ===\n%s\n\n", tokenStr)
		headerJSON, _ := json.MarshalIndent(token.Header, "", "  ")
		fmt.Printf("=== Header ===\n%s\n\n", headerJSON)
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("=== Claims ===\n%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
