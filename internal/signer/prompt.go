package signer

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// ErrNoTerminal is returned when a password is needed but stdin is not interactive.
var ErrNoTerminal = errors.New("keystore password not set and stdin is not a terminal")

// PromptPassword reads a password from the terminal behind fd without echoing it.
func PromptPassword(fd int, out io.Writer, prompt string) (string, error) {
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}

	fmt.Fprint(out, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}

	return string(password), nil
}
