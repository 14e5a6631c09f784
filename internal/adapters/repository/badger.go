package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
)

const (
	heartPrefix   = "heart:"
	heartIDPrefix = "idx:heart:id:"
	heartSeqKey   = "seq:heart"
)

// badgerRow is the stored value of one record.
type badgerRow struct {
	ID       string             `json:"id"`
	Account  string             `json:"account"`
	Seq      uint64             `json:"seq"`
	Name     string             `json:"name"`
	Username string             `json:"username"`
	Score    int                `json:"score"`
	Rounds   []heart.RoundScore `json:"rounds,omitempty"`
}

func (r badgerRow) record() heart.Record {
	return heart.Record{
		ID:       r.ID,
		Name:     r.Name,
		Score:    r.Score,
		Username: r.Username,
		Account:  r.Account,
		Rounds:   r.Rounds,
	}
}

// accountPrefix is heart:{account}: with the account escaped so a colon
// in it cannot bleed into another account's range.
func accountPrefix(account string) []byte {
	return []byte(heartPrefix + url.QueryEscape(account) + ":")
}

func heartKey(account, id string) []byte {
	return append(accountPrefix(account), id...)
}

func heartIDKey(id string) []byte {
	return []byte(heartIDPrefix + id)
}

// BadgerStore keeps records in an embedded Badger database.
type BadgerStore struct {
	db      *badger.DB
	seq     *badger.Sequence
	log     logger.Logger
	closed  atomic.Bool
	updater metricsUpdater
}

// NewBadgerStore opens the Badger directory at the configured path.
func NewBadgerStore(ctx context.Context, opts ...Option) (*BadgerStore, error) {
	o := newOptions(opts)

	var bopts badger.Options
	switch {
	case o.inMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case o.path != "":
		bopts = badger.DefaultOptions(o.path)
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	default:
		return nil, fmt.Errorf("open badger: empty path")
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte(heartSeqKey), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open badger sequence: %w", err)
	}

	s := &BadgerStore{db: db, seq: seq, log: o.logger}
	s.updater.start(ctx, o.metricsUpdateInterval, s.Count)
	s.log.Info(ctx, "badger store opened", logger.String("path", o.path), logger.Bool("inMemory", o.inMemory))
	return s, nil
}

// List implements Store.List.
func (s *BadgerStore) List(ctx context.Context, account string) (out []heart.Record, err error) {
	start := time.Now()
	defer func() { record(DriverBadger, "list", start, err) }()

	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := checkAccount(account); err != nil {
		return nil, err
	}

	var rows []badgerRow
	prefix := accountPrefix(account)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var row badgerRow
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &row)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list hearts: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	out = make([]heart.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// Apply implements Store.Apply.
func (s *BadgerStore) Apply(ctx context.Context, account string, records []heart.Record) (sum Summary, err error) {
	start := time.Now()
	defer func() { record(DriverBadger, "apply", start, err) }()

	if s.closed.Load() {
		return Summary{}, ErrStoreClosed
	}
	if err := checkAccount(account); err != nil {
		return Summary{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := resolve(r)
			switch o {
			case opInsert:
				if err := s.put(txn, account, uuid.NewString(), 0, r); err != nil {
					return err
				}
			case opUpdate:
				seq, err := s.existing(txn, account, r.ID)
				if err != nil {
					return err
				}
				if err := s.put(txn, account, r.ID, seq, r); err != nil {
					return err
				}
			case opDelete:
				if _, err := s.existing(txn, account, r.ID); err != nil {
					return err
				}
				if err := txn.Delete(heartKey(account, r.ID)); err != nil {
					return fmt.Errorf("delete %s: %w", r.ID, err)
				}
				if err := txn.Delete(heartIDKey(r.ID)); err != nil {
					return fmt.Errorf("delete index %s: %w", r.ID, err)
				}
			}
			sum.add(o)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	recordSummary(sum)
	return sum, nil
}

// existing returns the stored sequence of id, or 0 when it is absent.
func (s *BadgerStore) existing(txn *badger.Txn, account, id string) (uint64, error) {
	item, err := txn.Get(heartIDKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", id, err)
	}
	var owner string
	if err := item.Value(func(val []byte) error {
		owner = string(val)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("lookup %s: %w", id, err)
	}
	if owner != account {
		return 0, fmt.Errorf("%w: %s", ErrForeignRecord, id)
	}

	item, err = txn.Get(heartKey(account, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", id, err)
	}
	var row badgerRow
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &row)
	}); err != nil {
		return 0, fmt.Errorf("decode %s: %w", id, err)
	}
	return row.Seq, nil
}

// put writes the row and its id index. A zero seq allocates a new one.
func (s *BadgerStore) put(txn *badger.Txn, account, id string, seq uint64, r heart.Record) error {
	if seq == 0 {
		next, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		seq = next + 1
	}
	row := badgerRow{
		ID:       id,
		Account:  account,
		Seq:      seq,
		Name:     r.Name,
		Username: r.Username,
		Score:    r.Score,
		Rounds:   r.Rounds,
	}
	val, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	if err := txn.Set(heartKey(account, id), val); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := txn.Set(heartIDKey(id), []byte(account)); err != nil {
		return fmt.Errorf("write index %s: %w", id, err)
	}
	return nil
}

// Count implements Store.Count.
func (s *BadgerStore) Count(ctx context.Context) int {
	if s.closed.Load() {
		return 0
	}
	n := 0
	prefix := []byte(heartPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // keys only
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "count hearts failed", logger.Error(err))
		return 0
	}
	return n
}

// Close releases the sequence and closes the database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.updater.stop()
	if err := s.seq.Release(); err != nil {
		s.log.Warn(context.Background(), "release sequence failed", logger.Error(err))
	}
	return s.db.Close()
}
