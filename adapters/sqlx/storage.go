package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"finquest/core"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"FINQUEST_SQL_DRIVER"`
	DSN             string        `json:"dsn" env:"FINQUEST_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/finquest?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/finquest?parseTime=true"
	case DriverSQLite:
		cfg.DSN = "file:finquest.db"
	}
	return cfg
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Store implements engine.Storage on a relational database.
// Tables:
// - user_states: one row per user with XP, streak and counters
// - user_badges: one row per unlocked badge, ordered by seq
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and optionally migrates the schema.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	s := NewWithDB(db, cfg.Driver)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_states (
			user_id VARCHAR(255) PRIMARY KEY,
			total_xp BIGINT NOT NULL DEFAULT 0,
			current_streak BIGINT NOT NULL DEFAULT 0,
			last_check_in VARCHAR(10) NOT NULL DEFAULT '',
			modules_completed BIGINT NOT NULL DEFAULT 0,
			quizzes_completed BIGINT NOT NULL DEFAULT 0,
			positions_added BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id VARCHAR(255) NOT NULL,
			code VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			description VARCHAR(1024) NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			awarded_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, code)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type stateRow struct {
	UserID           string    `db:"user_id"`
	TotalXP          int64     `db:"total_xp"`
	CurrentStreak    int64     `db:"current_streak"`
	LastCheckIn      string    `db:"last_check_in"`
	ModulesCompleted int64     `db:"modules_completed"`
	QuizzesCompleted int64     `db:"quizzes_completed"`
	PositionsAdded   int64     `db:"positions_added"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type badgeRow struct {
	Code        string `db:"code"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Category    string `db:"category"`
}

func (r stateRow) state(badges []badgeRow) (core.State, error) {
	st := core.NewState(core.UserID(r.UserID))
	st.TotalXP = r.TotalXP
	st.CurrentStreak = r.CurrentStreak
	if r.LastCheckIn != "" {
		d, err := core.ParseDate(r.LastCheckIn)
		if err != nil {
			return core.State{}, fmt.Errorf("user %s: %w", r.UserID, err)
		}
		st.LastCheckIn = d
	}
	st.Counters = core.Counters{
		ModulesCompleted: r.ModulesCompleted,
		QuizzesCompleted: r.QuizzesCompleted,
		PositionsAdded:   r.PositionsAdded,
	}
	st.Updated = r.UpdatedAt.UTC()
	for _, b := range badges {
		st.Badges = append(st.Badges, core.Badge{Code: b.Code, Name: b.Name, Description: b.Description, Category: b.Category})
	}
	return st.Normalize(), nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

func (s *Store) load(ctx context.Context, q queryer, user core.UserID, lock bool) (core.State, error) {
	query := `SELECT user_id, total_xp, current_streak, last_check_in, modules_completed, quizzes_completed, positions_added, updated_at FROM user_states WHERE user_id = ?`
	if lock && s.driver != DriverSQLite {
		query += " FOR UPDATE"
	}
	var row stateRow
	err := q.GetContext(ctx, &row, q.Rebind(query), string(user))
	if errors.Is(err, sql.ErrNoRows) {
		st := core.NewState(user)
		st.Updated = time.Now().UTC()
		return st, nil
	}
	if err != nil {
		return core.State{}, fmt.Errorf("failed to load state: %w", err)
	}
	var badges []badgeRow
	if err := q.SelectContext(ctx, &badges, q.Rebind(`SELECT code, name, description, category FROM user_badges WHERE user_id = ? ORDER BY seq`), string(user)); err != nil {
		return core.State{}, fmt.Errorf("failed to load badges: %w", err)
	}
	return row.state(badges)
}

// ensureRow creates an empty row for user if none exists, so the locking
// SELECT that follows always has a row to lock.
func (s *Store) ensureRow(ctx context.Context, tx *sqlx.Tx, user core.UserID) error {
	var query string
	switch s.driver {
	case DriverPostgres:
		query = `INSERT INTO user_states (user_id, updated_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`
	case DriverMySQL:
		query = `INSERT IGNORE INTO user_states (user_id, updated_at) VALUES (?, ?)`
	default:
		query = `INSERT OR IGNORE INTO user_states (user_id, updated_at) VALUES (?, ?)`
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), string(user), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create state row: %w", err)
	}
	return nil
}

// GetState returns the stored state; unknown users get defaults.
func (s *Store) GetState(ctx context.Context, user core.UserID) (core.State, error) {
	return s.load(ctx, s.db, user, false)
}

// Update runs fn inside a transaction holding the user's row lock. The row is
// created first so concurrent first events serialize on it.
func (s *Store) Update(ctx context.Context, user core.UserID, fn func(core.State) (core.State, error)) (core.State, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.State{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureRow(ctx, tx, user); err != nil {
		return core.State{}, err
	}
	cur, err := s.load(ctx, tx, user, true)
	if err != nil {
		return core.State{}, err
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return core.State{}, err
	}
	next.UserID = user
	next = next.Normalize()
	if next.Updated.IsZero() {
		next.Updated = time.Now().UTC()
	}

	lastCheckIn := ""
	if !next.LastCheckIn.IsZero() {
		lastCheckIn = next.LastCheckIn.String()
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE user_states SET total_xp = ?, current_streak = ?, last_check_in = ?, modules_completed = ?, quizzes_completed = ?, positions_added = ?, updated_at = ? WHERE user_id = ?`),
		next.TotalXP, next.CurrentStreak, lastCheckIn, next.Counters.ModulesCompleted, next.Counters.QuizzesCompleted, next.Counters.PositionsAdded, next.Updated, string(user))
	if err != nil {
		return core.State{}, fmt.Errorf("failed to save state: %w", err)
	}

	// Badges are append-only.
	for i, b := range next.Badges {
		if cur.HasBadge(b.Code) {
			continue
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO user_badges (user_id, code, name, description, category, seq, awarded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			string(user), b.Code, b.Name, b.Description, b.Category, i, next.Updated); err != nil {
			return core.State{}, fmt.Errorf("failed to award badge %s: %w", b.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.State{}, fmt.Errorf("failed to commit: %w", err)
	}
	return next, nil
}

// TopN returns the states of the n users with the most XP.
func (s *Store) TopN(ctx context.Context, n int) ([]core.State, error) {
	if n <= 0 {
		return nil, nil
	}
	var rows []stateRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT user_id, total_xp, current_streak, last_check_in, modules_completed, quizzes_completed, positions_added, updated_at FROM user_states ORDER BY total_xp DESC, user_id ASC LIMIT ?`), n); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	out := make([]core.State, 0, len(rows))
	for _, r := range rows {
		st, err := r.state(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
