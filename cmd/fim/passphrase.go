package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"fim-go/internal/app"

	"golang.org/x/term"
)

// passphraseEnv names the variable that lets scripts unlock keys without a terminal.
const passphraseEnv = "FIM_PASSPHRASE"

// readPassphrase prompts on stderr and reads without echo when stdin is a
// terminal, and reads one line otherwise.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewPassphrase asks twice and requires both entries to match.
func readNewPassphrase() (string, error) {
	first, err := readPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("passphrase must not be empty")
	}
	if os.Getenv(passphraseEnv) != "" {
		return first, nil
	}
	second, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// passphraseFor prompts only when the app's mirror is encrypted.
func passphraseFor(a *app.FIMApp) (string, error) {
	if !a.MirrorEncrypted() {
		return "", nil
	}
	return readPassphrase("Key passphrase: ")
}
