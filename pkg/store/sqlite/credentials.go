package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ebobo/hilink_prod_go/pkg/model"
)

type configRow struct {
	UserID    int64  `db:"user_id"`
	IP        string `db:"ip"`
	Username  string `db:"username"`
	Password  []byte `db:"password"`
	UpdatedAt int64  `db:"updated_at"`
}

// SaveModemConfig validates and upserts the config for userID
func (s *SqliteStore) SaveModemConfig(ctx context.Context, userID int64, cfg model.ModemConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sealed, err := s.seal([]byte(cfg.Password))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO modem_configs (
			user_id,
			ip,
			username,
			password,
			updated_at)
		 VALUES(
			:user_id,
			:ip,
			:username,
			:password,
			:updated_at)
		 ON CONFLICT(user_id) DO UPDATE SET
			ip = excluded.ip,
			username = excluded.username,
			password = excluded.password,
			updated_at = excluded.updated_at`, configRow{
			UserID:    userID,
			IP:        cfg.IP,
			Username:  cfg.Username,
			Password:  sealed,
			UpdatedAt: time.Now().Unix(),
		})
	if err != nil {
		return fmt.Errorf("save modem config: %w", err)
	}
	s.log.Info("saved modem config", zap.Int64("user_id", userID), zap.String("modem_ip", cfg.IP))
	return nil
}

// GetModemConfig returns the config for userID or ErrNotFound
func (s *SqliteStore) GetModemConfig(ctx context.Context, userID int64) (model.ModemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row configRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM modem_configs WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ModemConfig{}, ErrNotFound
	}
	if err != nil {
		return model.ModemConfig{}, fmt.Errorf("get modem config: %w", err)
	}

	password, err := s.open(row.Password)
	if err != nil {
		return model.ModemConfig{}, err
	}
	return model.ModemConfig{IP: row.IP, Username: row.Username, Password: string(password)}, nil
}

// DeleteConfig removes the config for userID
func (s *SqliteStore) DeleteConfig(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := CheckForZeroRowsAffected(s.db.ExecContext(ctx, "DELETE FROM modem_configs WHERE user_id = ?", userID))
	if errors.Is(err, ErrNoRowsAffected) {
		return ErrNotFound
	}
	return err
}

// ListUsers returns the ids of every user with a stored config
func (s *SqliteStore) ListUsers(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	return ids, s.db.SelectContext(ctx, &ids, "SELECT user_id FROM modem_configs ORDER BY user_id")
}
