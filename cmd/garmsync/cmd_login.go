package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var flagEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Garmin Connect and store OAuth tokens in the profile",
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "Garmin account email (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	authClient, err := newAuthClient(cfg, log)
	if err != nil {
		return err
	}

	if authClient.Manager().IsAuthenticated() {
		fmt.Println("Already logged in. Tokens are valid.")
		return nil
	}

	// Whatever is on disk is stale or corrupt at this point; drop it so a
	// failed login cannot leave a mixed token pair behind.
	if err := authClient.Logout(); err != nil {
		log.Warn("clearing stale tokens", "error", err)
	}

	email := flagEmail
	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	result, err := authClient.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if result.NeedsMFA {
		fmt.Print("MFA code: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading MFA code: %w", err)
		}
		if err := authClient.ResumeLogin(ctx, result.MFA, strings.TrimSpace(line)); err != nil {
			return err
		}
	}

	fmt.Println("Login successful. Tokens saved.")
	return nil
}

// readPassword disables terminal echo when stdin is a terminal, and falls
// back to a plain line read when it is piped.
func readPassword() (string, error) {
	fmt.Print("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
