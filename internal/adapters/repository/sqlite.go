package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/pkg/logger"
)

// roundsColumn stores the shared extension rounds of a name as JSON text.
type roundsColumn []heart.RoundScore

func (c roundsColumn) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]heart.RoundScore(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *roundsColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan rounds: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*c = nil
		return nil
	}
	var rounds []heart.RoundScore
	if err := json.Unmarshal(raw, &rounds); err != nil {
		return fmt.Errorf("scan rounds: %w", err)
	}
	*c = rounds
	return nil
}

// heartRow is the SQLite row of one record.
type heartRow struct {
	ID        string       `gorm:"primaryKey;size:36"`
	Account   string       `gorm:"index;not null"`
	Seq       int64        `gorm:"index;not null"`
	Name      string       `gorm:"not null"`
	Username  string       `gorm:"not null"`
	Score     int          `gorm:"not null"`
	Rounds    roundsColumn `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (heartRow) TableName() string { return "hearts" }

func (r heartRow) record() heart.Record {
	return heart.Record{
		ID:       r.ID,
		Name:     r.Name,
		Score:    r.Score,
		Username: r.Username,
		Account:  r.Account,
		Rounds:   []heart.RoundScore(r.Rounds),
	}
}

// SQLiteStore keeps records in SQLite through gorm.
type SQLiteStore struct {
	db      *gorm.DB
	log     logger.Logger
	closed  atomic.Bool
	updater metricsUpdater
}

// NewSQLiteStore opens (and migrates) the database at the configured path.
func NewSQLiteStore(ctx context.Context, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)

	dsn := o.path
	if o.inMemory {
		// private named in-memory database shared by this pool only
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	if dsn == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&heartRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, log: o.logger}
	s.updater.start(ctx, o.metricsUpdateInterval, s.Count)
	s.log.Info(ctx, "sqlite store opened", logger.String("path", o.path), logger.Bool("inMemory", o.inMemory))
	return s, nil
}

// List implements Store.List.
func (s *SQLiteStore) List(ctx context.Context, account string) (out []heart.Record, err error) {
	start := time.Now()
	defer func() { record(DriverSQLite, "list", start, err) }()

	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := checkAccount(account); err != nil {
		return nil, err
	}

	var rows []heartRow
	if err := s.db.WithContext(ctx).Where("account = ?", account).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list hearts: %w", err)
	}
	out = make([]heart.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// Apply implements Store.Apply.
func (s *SQLiteStore) Apply(ctx context.Context, account string, records []heart.Record) (sum Summary, err error) {
	start := time.Now()
	defer func() { record(DriverSQLite, "apply", start, err) }()

	if s.closed.Load() {
		return Summary{}, ErrStoreClosed
	}
	if err := checkAccount(account); err != nil {
		return Summary{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq int64
		if err := tx.Model(&heartRow{}).Select("COALESCE(MAX(seq), 0)").Row().Scan(&seq); err != nil {
			return fmt.Errorf("read sequence: %w", err)
		}
		for _, r := range records {
			o := resolve(r)
			switch o {
			case opInsert:
				seq++
				if err := tx.Create(newRow(uuid.NewString(), account, seq, r)).Error; err != nil {
					return fmt.Errorf("insert %q: %w", r.Name, err)
				}
			case opUpdate:
				if err := s.upsert(tx, account, r, &seq); err != nil {
					return err
				}
			case opDelete:
				if err := s.delete(tx, account, r.ID); err != nil {
					return err
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

func newRow(id, account string, seq int64, r heart.Record) *heartRow {
	return &heartRow{
		ID:       id,
		Account:  account,
		Seq:      seq,
		Name:     r.Name,
		Username: r.Username,
		Score:    r.Score,
		Rounds:   roundsColumn(r.Rounds),
	}
}

func (s *SQLiteStore) upsert(tx *gorm.DB, account string, r heart.Record, seq *int64) error {
	res := tx.Model(&heartRow{}).
		Where("id = ? AND account = ?", r.ID, account).
		Updates(map[string]any{
			"name":       r.Name,
			"username":   r.Username,
			"score":      r.Score,
			"rounds":     roundsColumn(r.Rounds),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", r.ID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if err := s.owned(tx, r.ID); err != nil {
		return err
	}
	*seq++
	if err := tx.Create(newRow(r.ID, account, *seq, r)).Error; err != nil {
		return fmt.Errorf("upsert %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) delete(tx *gorm.DB, account, id string) error {
	res := tx.Where("id = ? AND account = ?", id, account).Delete(&heartRow{})
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.owned(tx, id)
	}
	return nil
}

// owned fails when id exists under a different account.
func (s *SQLiteStore) owned(tx *gorm.DB, id string) error {
	var other heartRow
	err := tx.Select("account").Where("id = ?", id).Take(&other).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup %s: %w", id, err)
	default:
		return fmt.Errorf("%w: %s", ErrForeignRecord, id)
	}
}

// Count implements Store.Count.
func (s *SQLiteStore) Count(ctx context.Context) int {
	if s.closed.Load() {
		return 0
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&heartRow{}).Count(&n).Error; err != nil {
		s.log.Warn(ctx, "count hearts failed", logger.Error(err))
		return 0
	}
	return int(n)
}

// Close stops background work and closes the database.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.updater.stop()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
