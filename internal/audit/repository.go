package audit

import "context"

// Repository is append and read only.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	Count(ctx context.Context, f Filter) (int, error)
	List(ctx context.Context, f Filter) ([]Record, error)
}
