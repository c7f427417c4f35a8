package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/meghashyamc/playfinder/logger"
)

var ErrQueryPanicked = errors.New("query panicked")

type Outcome[T any] struct {
	Data         T
	Err          error
	UsedFallback bool
}

// SafeQuery runs query and never fails: an error or a panic yields fallback
// with UsedFallback set and the cause in Err.
func SafeQuery[T any](ctx context.Context, logger logger.Logger, query func(ctx context.Context) (T, error), fallback T) (outcome Outcome[T]) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("%w: %v", ErrQueryPanicked, recovered)
			logger.Error("query panicked, using fallback data", "err", err.Error())
			outcome = Outcome[T]{Data: fallback, Err: err, UsedFallback: true}
		}
	}()

	data, err := query(ctx)
	if err != nil {
		logger.Warn("query failed, using fallback data", "err", err.Error())
		return Outcome[T]{Data: fallback, Err: err, UsedFallback: true}
	}

	return Outcome[T]{Data: data}
}
