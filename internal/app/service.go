// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/vauva/internal/adapters/repository"
	"github.com/okian/vauva/internal/catalog"
	"github.com/okian/vauva/internal/config"
	"github.com/okian/vauva/internal/domain/dedupe"
	"github.com/okian/vauva/internal/domain/heart"
	"github.com/okian/vauva/internal/voting"
	"github.com/okian/vauva/pkg/logger"
	"github.com/okian/vauva/pkg/metrics"
)

// Service implements the API dependencies for the heart voting system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	catalog *catalog.Catalog

	// Configuration
	accounts    []config.Account
	storeDriver string
	storePath   string
	inMemory    bool
	dedupeSize  int
	strictNames bool
	pageSize    int

	// Save batches currently being applied, by dedupe key
	flightMu sync.Mutex
	inflight map[string]chan struct{}

	// State
	started    bool
	ownsStore  bool
	cancelBack context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAccounts sets the logins permitted to use the service.
func WithAccounts(accounts []config.Account) Option {
	return func(s *Service) {
		s.accounts = slices.Clone(accounts)
	}
}

// WithStore injects an already opened store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithStoreDriver selects the store opened on Start.
func WithStoreDriver(driver, path string, inMemory bool) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		s.storePath = path
		s.inMemory = inMemory
	}
}

// WithDedupeSize sets the size of the save batch deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStrictNames rejects hearts for names missing from the catalog.
func WithStrictNames(on bool) Option {
	return func(s *Service) {
		s.strictNames = on
	}
}

// WithCatalogPageSize sets the default catalog page size.
func WithCatalogPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// FromConfig maps the process configuration to options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithAccounts(cfg.Accounts),
		WithStoreDriver(cfg.StoreDriver, cfg.StorePath, cfg.StoreInMemory),
		WithDedupeSize(cfg.DedupeSize),
		WithStrictNames(cfg.StrictNames),
		WithCatalogPageSize(cfg.CatalogPageSize),
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver: repository.DriverSQLite,
		inMemory:    true,
		dedupeSize:  10_000,
		pageSize:    catalog.DefaultPageSize,
		inflight:    make(map[string]chan struct{}),
		logger:      nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store and builds the in-memory components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting heart service...")

	cat, err := catalog.New(catalog.WithDefaultPageSize(s.pageSize))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.catalog = cat

	if s.store == nil {
		// store background work outlives the start context
		backCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		store, err := repository.Open(backCtx, s.storeDriver,
			repository.WithPath(s.storePath),
			repository.WithInMemory(s.inMemory),
			repository.WithLogger(s.logger.Named("store")),
		)
		if err != nil {
			cancel()
			return fmt.Errorf("start service: %w", err)
		}
		s.store = store
		s.ownsStore = true
		s.cancelBack = cancel
		s.logger.Info(ctx, "using store", logger.String("driver", s.storeDriver), logger.Bool("inMemory", s.inMemory))
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.started = true
	s.logger.Info(ctx, "heart service started",
		logger.Int("accounts", len(s.accounts)),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("strictNames", s.strictNames),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping heart service...")

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "close store failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	// Stop store background work
	if s.cancelBack != nil {
		s.cancelBack()
		s.cancelBack = nil
	}

	s.started = false
	s.logger.Info(context.Background(), "heart service stopped")
}

// components is a consistent view of a started service.
type components struct {
	store   repository.Store
	deduper dedupe.Deduper
	catalog *catalog.Catalog
}

func (s *Service) running() (components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return components{}, ErrNotStarted
	}
	return components{store: s.store, deduper: s.deduper, catalog: s.catalog}, nil
}

// Authenticate checks login and password against the configured accounts.
func (s *Service) Authenticate(ctx context.Context, login, password string) (heart.Account, error) {
	acc, ok := s.lookup(login)
	if !ok || !matches(acc, password) {
		metrics.RecordLogin("failure")
		s.log().Info(ctx, "login rejected", logger.String("login", login))
		return heart.LoggedOut(), ErrInvalidCredentials
	}
	metrics.RecordLogin("success")
	s.log().Info(ctx, "login accepted", logger.String("login", login))
	return toAccount(acc), nil
}

// Account returns the session identity of a configured login.
func (s *Service) Account(login string) (heart.Account, bool) {
	acc, ok := s.lookup(login)
	if !ok {
		return heart.LoggedOut(), false
	}
	return toAccount(acc), true
}

func (s *Service) lookup(login string) (config.Account, bool) {
	login = strings.TrimSpace(login)
	if login == "" {
		return config.Account{}, false
	}
	for _, a := range s.accounts {
		if a.Login == login {
			return a, true
		}
	}
	return config.Account{}, false
}

func matches(acc config.Account, password string) bool {
	if password == "" {
		return false
	}
	if acc.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(acc.Password), []byte(password)) == 1
}

func toAccount(acc config.Account) heart.Account {
	return heart.Account{IsLoggedIn: true, Login: acc.Login, Usernames: slices.Clone(acc.Usernames)}
}

// LoadHearts returns the account's records in creation order.
func (s *Service) LoadHearts(ctx context.Context, account string) ([]heart.Record, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	records, err := c.store.List(ctx, account)
	if err != nil {
		s.log().Error(ctx, "load hearts failed", logger.String("account", account), logger.Error(err))
		return nil, fmt.Errorf("load hearts: %w", err)
	}
	metrics.RecordHeartsLoaded(len(records))
	return records, nil
}

// SaveResult is the outcome of one save batch.
type SaveResult struct {
	Records   []heart.Record     `json:"records"`
	Summary   repository.Summary `json:"summary"`
	Duplicate bool               `json:"duplicate"`
}

// SaveHearts applies the working set of account and returns the
// authoritative list. A non-empty batchID makes the call idempotent: a
// repeated id is not applied again. A repeat that arrives while the first
// batch is still being applied waits for it, so the list it gets back
// already holds the batch. The id is forgotten when applying fails so the
// client can retry with it.
func (s *Service) SaveHearts(ctx context.Context, account, batchID string, records []heart.Record) (SaveResult, error) {
	c, err := s.running()
	if err != nil {
		return SaveResult{}, err
	}

	acc, ok := s.Account(account)
	if !ok {
		return SaveResult{}, ErrUnknownAccount
	}
	batch, err := s.prepare(c.catalog, acc, records)
	if err != nil {
		metrics.RecordSaveBatch("invalid")
		return SaveResult{}, err
	}

	var key string
	if batchID != "" {
		key = dedupe.BatchKey(account, batchID)
		release, duplicate, err := s.claim(ctx, key)
		if err != nil {
			return SaveResult{}, err
		}
		if duplicate {
			s.log().Debug(ctx, "duplicate save batch", logger.String("account", account), logger.String("batchID", batchID))
			current, err := s.LoadHearts(ctx, account)
			if err != nil {
				return SaveResult{}, err
			}
			return SaveResult{Records: current, Duplicate: true}, nil
		}
		defer release()
	}

	sum, err := c.store.Apply(ctx, account, batch)
	if err != nil {
		if key != "" {
			s.Unrecord(ctx, key)
		}
		metrics.RecordSaveBatch("error")
		s.log().Error(ctx, "save hearts failed", logger.String("account", account), logger.Error(err))
		if errors.Is(err, repository.ErrForeignRecord) {
			return SaveResult{}, fmt.Errorf("%w: %w", ErrInvalidBatch, err)
		}
		return SaveResult{}, fmt.Errorf("save hearts: %w", err)
	}
	metrics.RecordSaveBatch("ok")
	s.log().Info(ctx, "hearts saved",
		logger.String("account", account),
		logger.Int("inserted", sum.Inserted),
		logger.Int("updated", sum.Updated),
		logger.Int("deleted", sum.Deleted),
	)

	current, err := s.LoadHearts(ctx, account)
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Records: current, Summary: sum}, nil
}

// claim makes the caller the owner of a save batch key. When another call
// is applying the same key, claim waits until it is done: a finished batch
// makes this call a duplicate and a failed one hands the key over. The
// owner must call release once the batch is applied or has failed.
func (s *Service) claim(ctx context.Context, key string) (release func(), duplicate bool, err error) {
	for {
		s.flightMu.Lock()
		done, busy := s.inflight[key]
		if !busy {
			if s.SeenAndRecord(ctx, key) {
				s.flightMu.Unlock()
				return nil, true, nil
			}
			done = make(chan struct{})
			s.inflight[key] = done
			s.flightMu.Unlock()
			return func() {
				s.flightMu.Lock()
				delete(s.inflight, key)
				s.flightMu.Unlock()
				close(done)
			}, false, nil
		}
		s.flightMu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// prepare validates records and stamps the default pending op.
func (s *Service) prepare(cat *catalog.Catalog, acc heart.Account, records []heart.Record) ([]heart.Record, error) {
	if err := heart.ValidateBatch(records); err != nil {
		return nil, err
	}
	out := make([]heart.Record, len(records))
	for i, r := range records {
		r = r.Clone()
		if !r.Deleted() {
			if !acc.Permits(r.Username) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownRater, r.Username)
			}
			if s.strictNames && !cat.Contains(r.Name) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownName, r.Name)
			}
		}
		if r.PendingOp == heart.OpNone && !r.Persisted() {
			r.PendingOp = heart.OpInsert
		}
		r.Account = acc.Login
		out[i] = r
	}
	return out, nil
}

// Results is the server-side aggregation of one round.
type Results struct {
	Round    int                 `json:"round"`
	Rounds   []int               `json:"rounds"`
	Groups   []voting.RaterGroup `json:"groups,omitempty"`
	Matrix   *voting.Matrix      `json:"matrix,omitempty"`
	Standing []voting.Standing   `json:"standing,omitempty"`
}

// Results aggregates the account's records: grouped by rater for round 0,
// as a rater by name matrix otherwise.
func (s *Service) Results(ctx context.Context, account string, round int) (Results, error) {
	if round < 0 {
		return Results{}, fmt.Errorf("%w: %d", ErrInvalidRound, round)
	}
	acc, ok := s.Account(account)
	if !ok {
		return Results{}, ErrUnknownAccount
	}
	records, err := s.LoadHearts(ctx, account)
	if err != nil {
		return Results{}, err
	}

	res := Results{Round: round, Rounds: voting.Rounds(records)}
	if res.Rounds == nil {
		res.Rounds = []int{}
	}
	if round == 0 {
		res.Groups = voting.GroupByRater(records)
		if res.Groups == nil {
			res.Groups = []voting.RaterGroup{}
		}
		metrics.RecordResults("base")
		return res, nil
	}
	m := voting.RoundMatrix(records, acc.Usernames, round)
	res.Matrix = &m
	res.Standing = voting.RoundStanding(records, round, voting.SortByScoreNames(records, round))
	metrics.RecordResults("round")
	return res, nil
}

// Catalog returns one page of the name catalog.
func (s *Service) Catalog(q catalog.Query) (catalog.Page, error) {
	c, err := s.running()
	if err != nil {
		return catalog.Page{}, err
	}
	return c.catalog.Page(q)
}

// SeenAndRecord atomically checks if a save batch key was seen and records it if not.
// Returns true if the key was already seen, false if it was newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	c, err := s.running()
	if err != nil {
		return false
	}
	seen := c.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordSaveDuplicate()
	}
	return seen
}

// Unrecord removes a save batch key from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	if c, err := s.running(); err == nil {
		c.deduper.Unrecord(ctx, key)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"storeDriver": s.storeDriver,
		"accounts":    len(s.accounts),
		"dedupeSize":  s.dedupeSize,
		"strictNames": s.strictNames,
	}

	if s.started {
		totalHearts := s.store.Count(ctx)
		stats["totalHearts"] = totalHearts
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateTotalHearts(totalHearts)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}
