// Package producer publishes session events to a message broker.
package producer

import "session-authority/internal/telemetry"

// Producer is an EventEmitter that owns a broker connection.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
