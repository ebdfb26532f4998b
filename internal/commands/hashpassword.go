// Package commands implements auracal's non-server subcommands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"auracal/internal/auth"
)

// HashPassword prompts for a password twice without echo and prints a
// config snippet with its argon2id hash.
func HashPassword(args []string, stdout io.Writer) error {
	username := "admin"
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		username = strings.TrimSpace(args[0])
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("hash-password must be run in an interactive terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	return writeHash(stdout, username, string(first), string(second))
}

func writeHash(w io.Writer, username, password, confirm string) error {
	if password == "" {
		return errors.New("password must not be empty")
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "basic_auth:")
	fmt.Fprintf(w, "  username: %q\n", username)
	fmt.Fprintf(w, "  password_hash: %q\n", hash)
	return nil
}
