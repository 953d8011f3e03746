// Package secretsource resolves the HMAC secret bridged signs API JWTs
// with when none is set in bridged.toml: first an environment variable,
// then an interactive terminal prompt, so an operator never has to write
// a production secret to disk in plaintext config.
package secretsource

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves and caches a single secret value, trying envVar before
// falling back to an interactive prompt.
type Source struct {
	envVar string
	once   sync.Once
	value  string
	err    error
}

// New returns a Source that checks envVar before prompting.
func New(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar)}
}

// Get resolves the secret, prompting at most once per Source.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("API JWT secret required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("API JWT secret required and no terminal available")
			}
			return
		}
		fmt.Fprint(os.Stderr, "Enter API JWT signing secret: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("read secret: %w", err)
			return
		}
		secret := string(raw)
		if strings.TrimSpace(secret) == "" {
			s.err = errors.New("API JWT secret cannot be empty")
			return
		}
		s.value = secret
	})
	return s.value, s.err
}
