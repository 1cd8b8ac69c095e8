// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/gemini-chat/internal/domain"
)

// ExchangeRecorder records completed proxy exchanges.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, ex *domain.Exchange) error
}

// Repository defines the interface for the exchange log.
type Repository interface {
	ExchangeRecorder

	// RecentExchanges returns up to limit exchanges, newest first.
	RecentExchanges(ctx context.Context, limit int) ([]*domain.Exchange, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
