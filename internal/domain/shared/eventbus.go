package shared

import "context"

// EventPublisher delivers domain events drained from an aggregate after a
// successful save. Publishing is best effort: services log failures but do
// not roll back the write.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
