package repository

import (
	"context"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// dealRecord is the deals table row. Round ids restart with the process, so
// rows are keyed by their own sequence.
type dealRecord struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	RoundID    uint64          `gorm:"not null;index"`
	LotName    string          `gorm:"not null"`
	WinnerID   string          `gorm:"not null;index:idx_deals_winner,priority:1"`
	WinnerName string          `gorm:"not null"`
	Price      decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	CreatedAt  time.Time       `gorm:"not null;index;index:idx_deals_winner,priority:2"`
}

func (dealRecord) TableName() string { return "deals" }

type PostgresDealRepo struct {
	db *gorm.DB
}

func NewPostgresDealRepo(db *gorm.DB) (*PostgresDealRepo, error) {
	repo := &PostgresDealRepo{db: db}
	if err := repo.ensureSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *PostgresDealRepo) ensureSchema() error {
	return r.db.AutoMigrate(&dealRecord{})
}

// Insert appends a deal. Rows are never updated.
func (r *PostgresDealRepo) Insert(ctx context.Context, deal *model.Deal) error {
	if deal == nil {
		return nil
	}
	rec := dealRecord{
		RoundID:    deal.RoundID,
		LotName:    deal.LotName,
		WinnerID:   deal.WinnerID,
		WinnerName: deal.WinnerName,
		Price:      deal.Price,
		CreatedAt:  deal.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *PostgresDealRepo) Recent(ctx context.Context, filter model.DealFilter) ([]model.Deal, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&dealRecord{})
	if filter.WinnerID != "" {
		q = q.Where("winner_id = ?", filter.WinnerID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var rows []dealRecord
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	deals := make([]model.Deal, 0, len(rows))
	for _, row := range rows {
		deals = append(deals, model.Deal{
			ID:         row.ID,
			RoundID:    row.RoundID,
			LotName:    row.LotName,
			WinnerID:   row.WinnerID,
			WinnerName: row.WinnerName,
			Price:      row.Price,
			CreatedAt:  row.CreatedAt,
		})
	}
	return deals, nil
}

// Cleanup drops deals older than the retention window.
func (r *PostgresDealRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&dealRecord{}).Error
}
