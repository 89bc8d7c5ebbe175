// Package codegen draws short codes and validates custom aliases. It owns the
// retry policy around the store's atomic insert but never checks existence
// itself: the insert is the only arbiter of uniqueness.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
)

const (
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultCodeLength = 7
	DefaultAttempts   = 5

	MinAliasLength = 3
	MaxAliasLength = 32
)

var aliasRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Words that collide with routes or read as system pages.
var reservedWords = map[string]struct{}{
	"api":       {},
	"open":      {},
	"auth":      {},
	"assets":    {},
	"healthz":   {},
	"login":     {},
	"logout":    {},
	"dashboard": {},
	"admin":     {},
	"static":    {},
}

// InsertFunc performs the atomic insert for one identifier. It must return an
// error matching domain.ErrDuplicateKey when the identifier is taken.
type InsertFunc func(ctx context.Context, identifier string) error

type Generator struct {
	length   int
	attempts int
}

func New(length, attempts int) *Generator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	return &Generator{length: length, attempts: attempts}
}

// GenerateCode draws a random base62 code of the configured length.
func (g *Generator) GenerateCode() (string, error) {
	alphaLen := len(Alphabet)
	cutoff := (256 / alphaLen) * alphaLen

	out := make([]byte, g.length)
	filled := 0

	var buf [32]byte
	for filled < g.length {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("rand read: %w", err)
		}

		for _, b := range buf {
			if filled >= g.length {
				break
			}

			// reject the tail so every symbol is equally likely
			if int(b) >= cutoff {
				continue
			}

			out[filled] = Alphabet[int(b)%alphaLen]
			filled++
		}
	}

	return string(out), nil
}

// ValidateAlias checks charset, length bounds and reserved words.
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return domain.NewValidationError("custom_alias", domain.ErrAliasInvalid)
	}

	if !aliasRe.MatchString(alias) {
		return domain.NewValidationError("custom_alias", domain.ErrAliasInvalid)
	}

	if _, ok := reservedWords[strings.ToLower(alias)]; ok {
		return domain.NewValidationError("custom_alias", domain.ErrAliasInvalid)
	}

	return nil
}

// IsWellFormed reports whether s could be an identifier at all.
// The resolver uses it to skip the store for garbage paths.
func IsWellFormed(s string) bool {
	return len(s) > 0 && len(s) <= MaxAliasLength && aliasRe.MatchString(s)
}

// ReserveCode draws codes until insert accepts one or attempts run out.
func (g *Generator) ReserveCode(ctx context.Context, insert InsertFunc) (string, error) {
	for range g.attempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.GenerateCode()
		if err != nil {
			return "", fmt.Errorf("codegen generate: %w", err)
		}

		err = insert(ctx, code)
		if errors.Is(err, domain.ErrDuplicateKey) {
			continue
		}

		if err != nil {
			return "", err
		}

		return code, nil
	}

	return "", fmt.Errorf("codegen: %d attempts at length %d: %w", g.attempts, g.length, domain.ErrCodeSpaceExhausted)
}

// ReserveAlias validates alias and performs a single insert.
// Losing the race yields domain.ErrAliasTaken.
func (g *Generator) ReserveAlias(ctx context.Context, alias string, insert InsertFunc) error {
	if err := ValidateAlias(alias); err != nil {
		return err
	}

	err := insert(ctx, alias)
	if errors.Is(err, domain.ErrDuplicateKey) {
		return domain.ErrAliasTaken
	}

	return err
}
