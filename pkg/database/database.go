package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// Config holds database connection configuration
type Config struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Manager hands out the primary connection for writes and round-robins
// reads across replicas, falling back to the primary.
type Manager struct {
	primary  *sql.DB
	replicas []*sql.DB
	current  uint32
	mu       sync.RWMutex
}

// Open connects to the primary and any reachable replicas. Replicas that
// fail to open or ping are logged and skipped.
func Open(cfg Config, logger logrus.FieldLogger) (*Manager, error) {
	primary, err := openPool(cfg, cfg.PrimaryURL, cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary: %w", err)
	}

	m := &Manager{primary: primary}
	replicaConns := cfg.MaxConns / 2
	if replicaConns < 2 {
		replicaConns = 2
	}
	for i, url := range cfg.ReplicaURLs {
		replica, err := openPool(cfg, url, replicaConns)
		if err != nil {
			logger.WithError(err).WithField("replica", i).Warn("skipping database replica")
			continue
		}
		m.replicas = append(m.replicas, replica)
	}

	logger.WithField("replicas", len(m.replicas)).Info("database connections initialized")
	return m, nil
}

func openPool(cfg Config, url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return db, nil
}

// FromDB wraps existing pools, mainly for tests
func FromDB(primary *sql.DB, replicas ...*sql.DB) *Manager {
	return &Manager{primary: primary, replicas: replicas}
}

// Primary returns the connection for writes and transactions
func (m *Manager) Primary() *sql.DB {
	return m.primary
}

// Replica returns a read connection
func (m *Manager) Replica() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.replicas) == 0 {
		return m.primary
	}
	i := atomic.AddUint32(&m.current, 1)
	return m.replicas[int(i%uint32(len(m.replicas)))]
}

// HealthCheck pings the primary and reports when every replica is down
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	m.mu.RLock()
	replicas := append([]*sql.DB(nil), m.replicas...)
	m.mu.RUnlock()

	var unhealthy []string
	for i, r := range replicas {
		if err := r.PingContext(ctx); err != nil {
			unhealthy = append(unhealthy, fmt.Sprintf("replica-%d", i))
		}
	}
	if len(unhealthy) > 0 && len(unhealthy) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// Close closes every pool
func (m *Manager) Close() error {
	var errs []error
	if err := m.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}

	m.mu.Lock()
	replicas := m.replicas
	m.replicas = nil
	m.mu.Unlock()

	for i, r := range replicas {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d close error: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ParseReplicaURLs splits a comma-separated list, dropping blanks
func ParseReplicaURLs(s string) []string {
	if s == "" {
		return nil
	}
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// WithTx runs fn inside a transaction, committing when it returns nil
// and rolling back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
