package publish

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Log is the development sink: it logs payloads instead of delivering them.
type Log struct{}

func (Log) Send(_ context.Context, topic string, payload []byte) (string, error) {
	id := uuid.NewString()
	log.Printf("publish: topic=%s delivery_id=%s payload=%s", topic, id, payload)
	return id, nil
}
