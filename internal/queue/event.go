// Package queue defines the image lifecycle events exchanged over RabbitMQ,
// the publisher used by the catalog and the background consumer that
// records them in the activity log.
package queue

// Image event kinds.
const (
	ImageCreated = "image.created"
	ImageUpdated = "image.updated"
	ImageDeleted = "image.deleted"
)

// ImageEvent is published after an image mutation has been committed. It
// carries enough context for downstream consumers to log or index without
// querying the primary database.
type ImageEvent struct {
	Kind       string   `json:"kind"`
	ImageID    uint64   `json:"image_id"`
	UserID     uint64   `json:"user_id"`
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Tags       []string `json:"tags"`
	OccurredAt string   `json:"occurred_at"`
}
