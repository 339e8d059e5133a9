package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassphrase returns REORDER_PASSPHRASE when set, otherwise prompts on
// the controlling terminal without echo.
func readPassphrase() (string, error) {
	if p := os.Getenv("REORDER_PASSPHRASE"); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("sync file is encrypted: set REORDER_PASSPHRASE or run from a terminal")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	p := strings.TrimRight(string(b), "\r\n")
	if p == "" {
		return "", errors.New("empty passphrase")
	}
	return p, nil
}
