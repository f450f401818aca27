package ledger

import (
	"context"

	"github.com/coldtrade/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically. The allocator relies on this for its all-or-nothing
// guarantee across multi-batch deductions.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories
// within a transaction. All repositories returned share the same underlying
// database transaction.
type TransactionalRepositories interface {
	// BatchRepo returns the stock batch repository scoped to the current transaction
	BatchRepo() ledger.StockBatchRepository
	// OutboundRepo returns the outbound record repository scoped to the current transaction
	OutboundRepo() ledger.OutboundRecordRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for tests with in-memory repositories.
type NoOpTransactionScope struct {
	batchRepo    ledger.StockBatchRepository
	outboundRepo ledger.OutboundRecordRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	batchRepo ledger.StockBatchRepository,
	outboundRepo ledger.OutboundRecordRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batchRepo:    batchRepo,
		outboundRepo: outboundRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BatchRepo returns the stock batch repository.
func (s *NoOpTransactionScope) BatchRepo() ledger.StockBatchRepository {
	return s.batchRepo
}

// OutboundRepo returns the outbound record repository.
func (s *NoOpTransactionScope) OutboundRepo() ledger.OutboundRecordRepository {
	return s.outboundRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
