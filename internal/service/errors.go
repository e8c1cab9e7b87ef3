// Package service holds the recipe use cases: the user-scoped attribute
// resolver, the recipe filter engine, image association and user accounts.
// Every operation takes the acting user's id explicitly.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/recipe-api/internal/repository"
)

// ErrNotFound is returned for missing entities and for entities owned by
// someone else; callers cannot tell the two apart.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned when email/password or a refresh token
// do not authenticate an active user.
var ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldError builds a ValidationError for a single field.
func FieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// add records msg for field unless the field already has a message.
func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// notFound translates the repository sentinel into the service one.
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.Is(err, ErrNotFound) || errors.As(err, &verr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
