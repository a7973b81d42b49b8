package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// HistoryBackend stores history in the history table.
type HistoryBackend struct {
	db *DB
}

func NewHistoryBackend(db *DB) *HistoryBackend {
	return &HistoryBackend{db: db}
}

func (b *HistoryBackend) Put(ctx context.Context, item domain.HistoryItem) error {
	rec := newHistoryRecord(item)
	err := b.db.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save history item: %w", err)
	}
	return nil
}

func (b *HistoryBackend) Count(ctx context.Context) (int, error) {
	var n int64
	if err := b.db.conn.WithContext(ctx).Model(&HistoryRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int(n), nil
}

func (b *HistoryBackend) DeleteOldest(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	var deleted int
	err := b.db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var urls []string
		if err := tx.Model(&HistoryRecord{}).
			Order("timestamp asc").
			Limit(n).
			Pluck("url", &urls).Error; err != nil {
			return err
		}
		if len(urls) == 0 {
			return nil
		}
		res := tx.Where("url IN ?", urls).Delete(&HistoryRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict history entries: %w", err)
	}
	return deleted, nil
}

func (b *HistoryBackend) List(ctx context.Context) ([]domain.HistoryItem, error) {
	var records []HistoryRecord
	if err := b.db.conn.WithContext(ctx).Order("timestamp desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	items := make([]domain.HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, r.HistoryItem())
	}
	return items, nil
}

func (b *HistoryBackend) Clear(ctx context.Context) error {
	err := b.db.conn.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&HistoryRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
