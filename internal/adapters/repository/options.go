package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/vauva/pkg/logger"
	"github.com/okian/vauva/pkg/metrics"
)

// Drivers understood by Open.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

type options struct {
	path                  string
	inMemory              bool
	metricsUpdateInterval time.Duration
	logger                logger.Logger
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithPath sets the SQLite file or Badger directory.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithInMemory keeps all data in memory.
func WithInMemory(on bool) Option {
	return func(o *options) { o.inMemory = on }
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{metricsUpdateInterval: 5 * time.Second, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates the store for driver.
func Open(ctx context.Context, driver string, opts ...Option) (Store, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLiteStore(ctx, opts...)
	case DriverBadger:
		return NewBadgerStore(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// metricsUpdater periodically publishes the record count.
type metricsUpdater struct {
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

func (u *metricsUpdater) start(ctx context.Context, interval time.Duration, count func(context.Context) int) {
	u.stopCh = make(chan struct{})
	metrics.UpdateTotalHearts(count(ctx))

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-u.stopCh:
				return
			case <-ticker.C:
				metrics.UpdateTotalHearts(count(ctx))
			}
		}
	}()
}

func (u *metricsUpdater) stop() {
	u.once.Do(func() {
		if u.stopCh != nil {
			close(u.stopCh)
		}
	})
	u.wg.Wait()
}
