// Package publish provides the outbound messaging capability: fire-and-forget
// topic publication with a delivery id for logging.
package publish

import "context"

type Publisher interface {
	Send(ctx context.Context, topic string, payload []byte) (deliveryID string, err error)
}
