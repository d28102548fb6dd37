package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ebobo/hilink_prod_go/pkg/model"
	"github.com/ebobo/hilink_prod_go/pkg/utility"
)

// RecordIPChange stores a rotation result. The timestamp is kept in the canonical form.
func (s *SqliteStore) RecordIPChange(ctx context.Context, userID int64, wanIP, timestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ip_changes (id, user_id, wan_ip, changed_at, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), userID, wanIP, utility.NormalizeTimestamp(timestamp), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("record ip change: %w", err)
	}
	return nil
}

// GetLastChange returns the newest rotation for userID, zero value if there is none
func (s *SqliteStore) GetLastChange(ctx context.Context, userID int64) (model.LastChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last model.LastChange
	err := s.db.GetContext(ctx, &last,
		`SELECT wan_ip, changed_at FROM ip_changes
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LastChange{}, nil
	}
	if err != nil {
		return model.LastChange{}, fmt.Errorf("get last ip change: %w", err)
	}
	last.Timestamp = utility.NormalizeTimestamp(last.Timestamp)
	return last, nil
}
