// Package strategy runs ordered, named alternatives until one succeeds.
package strategy

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned when every strategy failed.
var ErrExhausted = errors.New("all strategies exhausted")

// Strategy is one named way of producing a T.
type Strategy[T any] struct {
	Name    string
	Attempt func(ctx context.Context) (T, error)
}

// New is shorthand for building a Strategy.
func New[T any](name string, attempt func(ctx context.Context) (T, error)) Strategy[T] {
	return Strategy[T]{Name: name, Attempt: attempt}
}

// FirstSuccess tries strategies in order and returns the first result whose
// attempt returned no error, together with that strategy's name. Failed
// attempts never stop the cascade; a done context does. When nothing
// succeeds the error wraps ErrExhausted and every attempt's error.
func FirstSuccess[T any](ctx context.Context, strategies ...Strategy[T]) (T, string, error) {
	var zero T
	errs := make([]error, 0, len(strategies)+1)
	errs = append(errs, ErrExhausted)

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		v, err := s.Attempt(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return zero, "", errors.Join(errs...)
}

// Names lists strategy names in order.
func Names[T any](strategies []Strategy[T]) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	return names
}
