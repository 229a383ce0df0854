package intel

import (
	"context"
	"errors"
)

// ErrUnavailable means the search backend could not be reached or errored.
var ErrUnavailable = errors.New("market intelligence unavailable")

// Source returns unstructured market commentary for a query.
type Source interface {
	Search(ctx context.Context, query string) (string, error)
}
