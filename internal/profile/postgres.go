package profile

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the directory backend used when DATABASE_URL is set.
// Nickname uniqueness is enforced by a UNIQUE constraint on
// profiles.nickname; a conflicting INSERT/UPDATE is mapped to
// ErrNicknameTaken.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore opens db and applies schema migrations.
func OpenPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runProfileMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func runProfileMigrations(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			pubkey TEXT PRIMARY KEY,
			nickname TEXT UNIQUE,
			display_name TEXT,
			encryption_public_key TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			nickname_changed_at BIGINT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) GetOwn(ctx context.Context, pubkey string) (Profile, error) {
	p, err := s.LookupByPubkey(ctx, pubkey)
	if err == ErrNotFound {
		return Profile{Pubkey: pubkey}, nil
	}
	return p, err
}

func (s *PostgresStore) LookupByPubkey(ctx context.Context, pubkey string) (Profile, error) {
	return s.scanOne(ctx, `SELECT pubkey, COALESCE(nickname,''), COALESCE(display_name,''),
		COALESCE(encryption_public_key,''), created_at, updated_at, COALESCE(nickname_changed_at,0)
		FROM profiles WHERE pubkey = $1`, pubkey)
}

func (s *PostgresStore) LookupByNickname(ctx context.Context, nickname string) (Profile, error) {
	return s.scanOne(ctx, `SELECT pubkey, COALESCE(nickname,''), COALESCE(display_name,''),
		COALESCE(encryption_public_key,''), created_at, updated_at, COALESCE(nickname_changed_at,0)
		FROM profiles WHERE nickname = $1`, nickname)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg string) (Profile, error) {
	var p Profile
	row := s.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&p.Pubkey, &p.Nickname, &p.DisplayName, &p.EncryptionPublicKey,
		&p.CreatedAt, &p.UpdatedAt, &p.NicknameChangedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) SetNickname(ctx context.Context, pubkey, nickname string, now int64) (Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, err
	}
	defer tx.Rollback()

	var current Profile
	current.Pubkey = pubkey
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(nickname,''), COALESCE(display_name,''),
		COALESCE(encryption_public_key,''), created_at, updated_at, COALESCE(nickname_changed_at,0)
		FROM profiles WHERE pubkey = $1 FOR UPDATE`, pubkey)
	err = row.Scan(&current.Nickname, &current.DisplayName, &current.EncryptionPublicKey,
		&current.CreatedAt, &current.UpdatedAt, &current.NicknameChangedAt)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Profile{}, err
	}

	if exists && current.Nickname == nickname {
		return current, nil
	}
	if exists && current.Nickname != "" {
		if remaining := CooldownRemaining(current.NicknameChangedAt, msToTime(now)); remaining > 0 {
			return Profile{}, ErrCooldownActive
		}
	}

	current.Nickname = nickname
	current.DisplayName = displayNameFor(nickname)
	current.NicknameChangedAt = now
	current.UpdatedAt = now
	if !exists {
		current.CreatedAt = now
	}

	if exists {
		_, err = tx.ExecContext(ctx, `UPDATE profiles SET nickname=$1, display_name=$2,
			updated_at=$3, nickname_changed_at=$4 WHERE pubkey=$5`,
			current.Nickname, current.DisplayName, current.UpdatedAt, current.NicknameChangedAt, pubkey)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO profiles
			(pubkey, nickname, display_name, created_at, updated_at, nickname_changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			pubkey, current.Nickname, current.DisplayName, current.CreatedAt, current.UpdatedAt, current.NicknameChangedAt)
	}
	if isUniqueViolation(err) {
		return Profile{}, ErrNicknameTaken
	}
	if err != nil {
		return Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, err
	}
	return current, nil
}

func (s *PostgresStore) SetEncryptionPublicKey(ctx context.Context, pubkey, publicKey string, now int64) (Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, err
	}
	defer tx.Rollback()

	var current Profile
	current.Pubkey = pubkey
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(nickname,''), COALESCE(display_name,''),
		created_at, updated_at, COALESCE(nickname_changed_at,0)
		FROM profiles WHERE pubkey = $1 FOR UPDATE`, pubkey)
	err = row.Scan(&current.Nickname, &current.DisplayName, &current.CreatedAt, &current.UpdatedAt, &current.NicknameChangedAt)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Profile{}, err
	}

	current.EncryptionPublicKey = publicKey
	current.UpdatedAt = now
	if !exists {
		current.CreatedAt = now
		_, err = tx.ExecContext(ctx, `INSERT INTO profiles
			(pubkey, encryption_public_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4)`, pubkey, publicKey, current.CreatedAt, current.UpdatedAt)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE profiles SET encryption_public_key=$1, updated_at=$2
			WHERE pubkey=$3`, publicKey, current.UpdatedAt, pubkey)
	}
	if err != nil {
		return Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, err
	}
	return current, nil
}

// isUniqueViolation detects Postgres error code 23505 without importing a
// pgconn-specific error type, matching a plain substring check so it works
// across both pgx's native error and database/sql's wrapped form.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return containsSQLState(err.Error(), "23505") || containsText(err.Error(), "duplicate key")
}

func containsSQLState(msg, code string) bool {
	return containsText(msg, code)
}

func containsText(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
