// Package prompt collects PostgreSQL credentials from the operator.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrMissingCredentials = errors.New("missing database credentials")

// Credentials are the values the operator may be asked for.
type Credentials struct {
	User     string
	Password string
}

// Prompter reads answers from in and writes questions to out. When in is a terminal, passwords are read with echo
// disabled.
type Prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// NewStdio returns a Prompter on the process' terminal. Questions go to stderr so stdout stays clean.
func NewStdio() *Prompter {
	return New(os.Stdin, os.Stderr)
}

// Username asks for the PostgreSQL user.
func (p *Prompter) Username() (string, error) {
	fmt.Fprint(p.out, "PostgreSQL user: ")
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password asks for the PostgreSQL password. Only the line terminator is stripped, surrounding spaces are part of
// the password.
func (p *Prompter) Password() (string, error) {
	fmt.Fprint(p.out, "PostgreSQL password: ")
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out) // newline after the hidden input
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Complete prompts for every empty field of creds. With interactive false, nothing is read: a missing user is an
// error, and an empty password is left as is so the driver can fall back to a password file or trust auth.
func (p *Prompter) Complete(creds *Credentials, interactive bool) error {
	if !interactive {
		if creds.User == "" {
			return fmt.Errorf("%w: user", ErrMissingCredentials)
		}
		return nil
	}

	if creds.User == "" {
		user, err := p.Username()
		if err != nil {
			return err
		}
		creds.User = user
	}
	if creds.Password == "" {
		pwd, err := p.Password()
		if err != nil {
			return err
		}
		creds.Password = pwd
	}
	return nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return line, nil
}
