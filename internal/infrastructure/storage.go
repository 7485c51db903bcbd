package infrastructure

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/architeacher/svc-msg-queue/internal/config"
)

const postgresDriver = "postgres"

// Storage owns the PostgreSQL connection pool. The pool is opened on first use.
type Storage struct {
	cfg config.StorageConfig

	mutex sync.Mutex
	db    *sqlx.DB
}

func NewStorage(cfg config.StorageConfig) (*Storage, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("postgres host must not be empty")
	}

	return &Storage{cfg: cfg}, nil
}

// DSN returns the lib/pq connection URL.
func (s *Storage) DSN() string {
	query := url.Values{}
	query.Set("sslmode", s.cfg.SSLMode)
	if s.cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(s.cfg.ConnectTimeout.Seconds())))
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.cfg.Username, s.cfg.Password),
		Host:     net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Path:     "/" + s.cfg.Database,
		RawQuery: query.Encode(),
	}

	return dsn.String()
}

// GetDB returns the connection pool, connecting when needed.
func (s *Storage) GetDB() (*sqlx.DB, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, postgresDriver, s.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(s.cfg.ConnMaxIdleTime)

	s.db = db

	return db, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	db, err := s.GetDB()
	if err != nil {
		return err
	}

	return db.PingContext(ctx)
}

func (s *Storage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	return err
}
