package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ecowise-backend/internal/config"
	"github.com/ecowise-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(128) PRIMARY KEY,
			level VARCHAR(32) NOT NULL DEFAULT 'Eco Friend',
			eco_points INT NOT NULL DEFAULT 0,
			items_recycled INT NOT NULL DEFAULT 0,
			carbon_saved_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(128) NOT NULL REFERENCES users(username),
			filename VARCHAR(255) NOT NULL,
			processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			points_earned INT NOT NULL,
			carbon_saved_kg DOUBLE PRECISION NOT NULL,
			objects_detected INT NOT NULL,
			stored_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS centers (
			id INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			address TEXT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			hours VARCHAR(64),
			rating DOUBLE PRECISION DEFAULT 0,
			services TEXT,
			distance VARCHAR(32),
			phone VARCHAR(32),
			website VARCHAR(255)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_points ON users(eco_points DESC, username ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON history(username, processed_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	if err := r.seedCenters(ctx); err != nil {
		return fmt.Errorf("seeding centers: %w", err)
	}

	r.logger.Info("database migrations completed")
	return nil
}

// seedCenters populates the centers table on first run.
func (r *Repository) seedCenters(ctx context.Context) error {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM centers`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, c := range defaultCenters {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO centers (id, name, type, address, lat, lng, hours, rating, services, distance, phone, website)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			c.ID, c.Name, c.Type, c.Address, c.Lat, c.Lng,
			c.Hours, c.Rating, strings.Join(c.Services, ","), c.Distance, c.Phone, c.Website,
		)
		if err != nil {
			return err
		}
	}
	r.logger.Info("seeded recycling centers", "count", len(defaultCenters))
	return nil
}

// GetAccount retrieves a user account without creating one.
func (r *Repository) GetAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	query := `
		SELECT username, level, eco_points, items_recycled, carbon_saved_kg, created_at
		FROM users
		WHERE username = $1
	`
	var account domain.UserAccount
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&account.Username,
		&account.Level,
		&account.EcoPoints,
		&account.ItemsRecycled,
		&account.CarbonSavedKg,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return &account, nil
}

// EnsureAccount retrieves a user account, creating it with zero stats on
// first lookup.
func (r *Repository) EnsureAccount(ctx context.Context, username string) (*domain.UserAccount, error) {
	query := `
		INSERT INTO users (username, level, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, username, domain.LevelFriend, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensuring account: %w", err)
	}
	return r.GetAccount(ctx, username)
}

// ApplySubmission atomically accumulates a submission into a user's stats,
// recomputes the level from the new total and appends the history record.
// The user row is locked for the duration of the transaction, so
// submissions for the same user serialize while other users proceed in
// parallel. The transaction commits fully or rolls back on every exit path.
func (r *Repository) ApplySubmission(ctx context.Context, username string, sub domain.Submission) (*domain.UserAccount, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	// Lazy account creation inside the same transaction.
	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, level, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
	`, username, domain.LevelFriend, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: ensuring account: %w", domain.ErrPersistence, err)
	}

	// Per-user row lock: concurrent submissions for this username queue
	// here, everyone else is untouched.
	var account domain.UserAccount
	err = tx.QueryRow(ctx, `
		SELECT username, eco_points, items_recycled, carbon_saved_kg, created_at
		FROM users
		WHERE username = $1
		FOR UPDATE
	`, username).Scan(
		&account.Username,
		&account.EcoPoints,
		&account.ItemsRecycled,
		&account.CarbonSavedKg,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: locking account: %w", domain.ErrPersistence, err)
	}

	account.EcoPoints += sub.Points
	account.ItemsRecycled += sub.Items
	account.CarbonSavedKg += sub.CarbonKg
	account.Level = domain.LevelFor(account.EcoPoints)

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET eco_points = $2, items_recycled = $3, carbon_saved_kg = $4, level = $5
		WHERE username = $1
	`, username, account.EcoPoints, account.ItemsRecycled, account.CarbonSavedKg, account.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: updating stats: %w", domain.ErrPersistence, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO history (username, filename, processed_at, points_earned, carbon_saved_kg, objects_detected, stored_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, username, sub.Filename, time.Now().UTC(), sub.Points, sub.CarbonKg, sub.Items, sub.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("%w: appending history: %w", domain.ErrPersistence, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: committing submission: %w", domain.ErrPersistence, err)
	}
	return &account, nil
}

// ListTopAccounts returns leaderboard entries ordered by eco points
// descending, ties broken by username ascending.
func (r *Repository) ListTopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	query := `
		SELECT username, eco_points, level
		FROM users
		ORDER BY eco_points DESC, username ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top accounts: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.Username, &entry.EcoPoints, &entry.Level); err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		entry.Rank = int64(len(entries) + 1)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListHistory returns a user's most recent submissions, newest first.
func (r *Repository) ListHistory(ctx context.Context, username string, limit int) ([]domain.HistoryRecord, error) {
	query := `
		SELECT username, filename, processed_at, points_earned, carbon_saved_kg, objects_detected, stored_path
		FROM history
		WHERE username = $1
		ORDER BY processed_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var storedPath *string
		if err := rows.Scan(
			&rec.Username, &rec.Filename, &rec.ProcessedAt,
			&rec.PointsEarned, &rec.CarbonSavedKg, &rec.ObjectsDetected, &storedPath,
		); err != nil {
			return nil, fmt.Errorf("scanning history record: %w", err)
		}
		if storedPath != nil {
			rec.StoredPath = *storedPath
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AllScores returns every user's eco points, used to rebuild the
// leaderboard cache.
func (r *Repository) AllScores(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT username, eco_points FROM users`)
	if err != nil {
		return nil, fmt.Errorf("getting all scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var username string
		var points int
		if err := rows.Scan(&username, &points); err != nil {
			return nil, fmt.Errorf("scanning score: %w", err)
		}
		scores[username] = points
	}
	return scores, rows.Err()
}

// ListCenters returns all recycling centers.
func (r *Repository) ListCenters(ctx context.Context) ([]domain.RecyclingCenter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, address, lat, lng, hours, rating, services, distance, phone, website
		FROM centers
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing centers: %w", err)
	}
	defer rows.Close()

	var centers []domain.RecyclingCenter
	for rows.Next() {
		center, err := scanCenter(rows)
		if err != nil {
			return nil, err
		}
		centers = append(centers, *center)
	}
	return centers, rows.Err()
}

// GetCenter returns one recycling center by id.
func (r *Repository) GetCenter(ctx context.Context, id int) (*domain.RecyclingCenter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, type, address, lat, lng, hours, rating, services, distance, phone, website
		FROM centers
		WHERE id = $1
	`, id)

	center, err := scanCenter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCenterNotFound
		}
		return nil, err
	}
	return center, nil
}

// Stats returns aggregate counts across users and centers.
func (r *Repository) Stats(ctx context.Context) (*domain.SystemStats, error) {
	var stats domain.SystemStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(eco_points), 0) FROM users),
			(SELECT COUNT(*) FROM centers)
	`).Scan(&stats.Users, &stats.TotalPoints, &stats.Centers)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCenter(row rowScanner) (*domain.RecyclingCenter, error) {
	var c domain.RecyclingCenter
	var services, hours, distance, phone, website *string
	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.Address, &c.Lat, &c.Lng,
		&hours, &c.Rating, &services, &distance, &phone, &website,
	)
	if err != nil {
		return nil, err
	}
	if hours != nil {
		c.Hours = *hours
	}
	if distance != nil {
		c.Distance = *distance
	}
	if phone != nil {
		c.Phone = *phone
	}
	if website != nil {
		c.Website = *website
	}
	c.Services = []string{}
	if services != nil {
		for _, s := range strings.Split(*services, ",") {
			if s != "" {
				c.Services = append(c.Services, s)
			}
		}
	}
	return &c, nil
}
