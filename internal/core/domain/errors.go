package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingFailed means every configured embedding model failed for a
	// query. Partial failure is normal and is not reported through errors.
	ErrEmbeddingFailed = errors.New("all embedding models failed")
	// ErrRerankUnavailable is diagnostic only: stage 2 converts it into a
	// fallback to the upstream ordering and never propagates it.
	ErrRerankUnavailable = errors.New("rerank capability unavailable")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
