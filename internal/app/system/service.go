package system

import "context"

// Service represents a lifecycle-managed component such as a background job.
// The manager starts services in registration order and stops them in reverse.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
