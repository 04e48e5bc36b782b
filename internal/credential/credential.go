// Package credential validates LLM API keys before any network call is made.
package credential

import (
	"errors"
	"fmt"
	"strings"
)

// Provider identifies an LLM API provider
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
)

var (
	// ErrMissing is returned when no key was supplied by any source
	ErrMissing = errors.New("api key is missing")
	// ErrMalformed is returned when a key does not match the provider's shape
	ErrMalformed = errors.New("api key is malformed")
)

// Error describes a failed credential check
type Error struct {
	Provider Provider
	Key      string // redacted
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Provider, e.Err, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Key is an API key that passed validation
type Key struct {
	provider Provider
	value    string
}

// Value returns the raw key
func (k Key) Value() string {
	return k.value
}

// Provider returns the provider the key was validated for
func (k Key) Provider() Provider {
	return k.provider
}

// String returns a redacted form of the key, safe for logs
func (k Key) String() string {
	return redact(k.value)
}

type shape struct {
	prefix string
	minLen int
	maxLen int
}

var shapes = map[Provider]shape{
	ProviderOpenAI:   {prefix: "sk-", minLen: 20, maxLen: 256},
	ProviderDeepSeek: {prefix: "sk-", minLen: 20, maxLen: 128},
}

// ParseProvider parses a provider name
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := shapes[p]; !ok {
		return "", fmt.Errorf("unknown provider %q: must be openai or deepseek", s)
	}
	return p, nil
}

// Validate checks that key is present and shaped like a key for provider.
// It never touches the network.
func Validate(provider Provider, key string) (Key, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Key{}, &Error{Provider: provider, Err: ErrMissing}
	}

	s, ok := shapes[provider]
	if !ok {
		return Key{}, &Error{Provider: provider, Key: redact(key), Reason: "unknown provider", Err: ErrMalformed}
	}
	fail := func(reason string) (Key, error) {
		return Key{}, &Error{Provider: provider, Key: redact(key), Reason: reason, Err: ErrMalformed}
	}

	if !strings.HasPrefix(key, s.prefix) {
		return fail(fmt.Sprintf("expected prefix %q", s.prefix))
	}
	if len(key) < s.minLen {
		return fail(fmt.Sprintf("expected at least %d characters", s.minLen))
	}
	if len(key) > s.maxLen {
		return fail(fmt.Sprintf("expected at most %d characters", s.maxLen))
	}
	for _, r := range key[len(s.prefix):] {
		if !isKeyRune(r) {
			return fail("unexpected character")
		}
	}

	return Key{provider: provider, value: key}, nil
}

// FirstNonEmpty returns the first source that holds a non-blank value
func FirstNonEmpty(sources ...string) string {
	for _, s := range sources {
		if v := strings.TrimSpace(s); v != "" {
			return v
		}
	}
	return ""
}

func isKeyRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
}

func redact(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "..." + key[len(key)-4:]
}
