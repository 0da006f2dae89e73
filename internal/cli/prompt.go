package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"kongman/internal/storage/models"
)

// readSecret prompts for a value without echo. Piped input is read as a
// single line.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(prompt), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(prompt), err)
	}
	return string(b), nil
}

// confirm asks a yes/no question unless --force was given.
func confirm(cmd *cobra.Command, question string) bool {
	if force, _ := cmd.Flags().GetBool("force"); force {
		return true
	}
	fmt.Printf("%s [y/N]: ", question)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// ─── Auth flags ─────────────────────────────────────────────────────────────

func addAuthFlags(cmd *cobra.Command) {
	cmd.Flags().String("auth", "", "auth type (none, basic, api-key, jwt-hs256)")
	cmd.Flags().StringP("username", "u", "", "basic auth username")
	cmd.Flags().String("password", "", "basic auth password (prompted when omitted)")
	cmd.Flags().String("api-key", "", "api key (prompted when omitted)")
	cmd.Flags().String("key-header", "", "header carrying the api key (default \"apikey\")")
	cmd.Flags().String("jwt-key", "", "JWT credential key (iss claim)")
	cmd.Flags().String("jwt-secret", "", "JWT credential secret (prompted when omitted)")
	cmd.Flags().Bool("skip-tls-verify", false, "skip TLS certificate verification for https URLs")

	cmd.RegisterFlagCompletionFunc("auth", completeAuthTypes)
}

// authFlagsChanged reports whether any credential flag was given.
func authFlagsChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"auth", "username", "password", "api-key", "key-header", "jwt-key", "jwt-secret"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// authFromFlags builds the credential payload. The auth type is inferred
// from the credential flags when --auth is absent.
func authFromFlags(cmd *cobra.Command) (models.AuthConfig, error) {
	name, _ := cmd.Flags().GetString("auth")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	apiKey, _ := cmd.Flags().GetString("api-key")
	keyHeader, _ := cmd.Flags().GetString("key-header")
	jwtKey, _ := cmd.Flags().GetString("jwt-key")
	jwtSecret, _ := cmd.Flags().GetString("jwt-secret")

	if name == "" {
		switch {
		case username != "":
			name = string(models.AuthTypeBasic)
		case apiKey != "" || keyHeader != "":
			name = string(models.AuthTypeAPIKey)
		case jwtKey != "":
			name = string(models.AuthTypeJWT)
		}
	}

	authType, err := models.ParseAuthType(name)
	if err != nil {
		return nil, err
	}

	var readErr error
	switch authType {
	case models.AuthTypeBasic:
		if password == "" && !cmd.Flags().Changed("password") {
			password, readErr = readSecret("Password")
		}
		return models.BasicAuth{Username: username, Password: password}, readErr
	case models.AuthTypeAPIKey:
		if apiKey == "" {
			apiKey, readErr = readSecret("API key")
		}
		return models.APIKeyAuth{Key: apiKey, Header: keyHeader}, readErr
	case models.AuthTypeJWT:
		if jwtSecret == "" {
			jwtSecret, readErr = readSecret("JWT secret")
		}
		return models.JWTAuth{Key: jwtKey, Secret: jwtSecret}, readErr
	}
	return models.NoAuth{}, nil
}
