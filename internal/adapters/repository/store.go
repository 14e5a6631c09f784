// Package repository stores heart records per account.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/metrics"
)

// Summary counts what a bulk write did.
type Summary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	Skipped  int `json:"skipped"`
}

// Store provides read/write access to heart records scoped by account.
// Implementations are safe for concurrent use.
type Store interface {
	// List returns the account's records in creation order.
	List(ctx context.Context, account string) ([]heart.Record, error)

	// Apply performs a bulk write for account in one transaction:
	//   - insert: a new record with a fresh id
	//   - update: upsert keyed by id and account
	//   - delete: delete keyed by id and account
	//   - untagged with id: update
	//   - untagged without id: insert
	// A delete without an id is skipped. Touching an id owned by another
	// account fails with ErrForeignRecord and nothing is written.
	Apply(ctx context.Context, account string, records []heart.Record) (Summary, error)

	// Count returns the number of records across all accounts.
	Count(ctx context.Context) int

	Close() error
}

// op is the write a record resolves to.
type op int

const (
	opSkip op = iota
	opInsert
	opUpdate
	opDelete
)

func (o op) String() string {
	switch o {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	default:
		return "skip"
	}
}

// resolve maps a record's pending tag to a write.
func resolve(r heart.Record) op {
	switch r.PendingOp {
	case heart.OpInsert:
		return opInsert
	case heart.OpUpdate:
		if r.ID == "" {
			return opInsert
		}
		return opUpdate
	case heart.OpDelete:
		if r.ID == "" {
			return opSkip
		}
		return opDelete
	default:
		if r.ID == "" {
			return opInsert
		}
		return opUpdate
	}
}

func (s *Summary) add(o op) {
	switch o {
	case opInsert:
		s.Inserted++
	case opUpdate:
		s.Updated++
	case opDelete:
		s.Deleted++
	default:
		s.Skipped++
	}
}

// record publishes the outcome of one store call.
func record(driver, operation string, start time.Time, err error) {
	metrics.RecordStoreLatency(driver, operation, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(driver, operation)
	}
}

func recordSummary(sum Summary) {
	metrics.RecordHeartWrites(opInsert.String(), sum.Inserted)
	metrics.RecordHeartWrites(opUpdate.String(), sum.Updated)
	metrics.RecordHeartWrites(opDelete.String(), sum.Deleted)
}

func checkAccount(account string) error {
	if account == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidAccount)
	}
	return nil
}
