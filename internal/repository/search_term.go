package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/user/moviesearch/internal/model"
	"gorm.io/gorm"
)

// searchTermRow search_terms 表
type searchTermRow struct {
	ID        uint   `gorm:"primaryKey"`
	Term      string `gorm:"size:255;uniqueIndex;not null"`
	Count     int    `gorm:"index;not null;default:1"`
	PosterURL string `gorm:"column:poster_url"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (searchTermRow) TableName() string {
	return "search_terms"
}

func (r searchTermRow) toModel() model.SearchTerm {
	return model.SearchTerm{
		ID:        strconv.FormatUint(uint64(r.ID), 10),
		Term:      r.Term,
		Count:     r.Count,
		PosterURL: r.PosterURL,
		UpdatedAt: r.UpdatedAt,
	}
}

// SearchTermRepository 基于 Postgres 的热搜词存储
type SearchTermRepository struct {
	db *gorm.DB
}

func NewSearchTermRepository(db *gorm.DB) *SearchTermRepository {
	return &SearchTermRepository{db: db}
}

// FindByTerm 精确匹配查找，不存在时返回 nil, nil
func (r *SearchTermRepository) FindByTerm(ctx context.Context, term string) (*model.SearchTerm, error) {
	var row searchTermRow
	err := r.db.WithContext(ctx).Where("term = ?", term).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := row.toModel()
	return &st, nil
}

// Create 新增记录，term 已存在时返回 ErrDuplicateTerm
func (r *SearchTermRepository) Create(ctx context.Context, st *model.SearchTerm) error {
	row := searchTermRow{
		Term:      st.Term,
		Count:     st.Count,
		PosterURL: st.PosterURL,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTerm
		}
		return err
	}
	st.ID = strconv.FormatUint(uint64(row.ID), 10)
	st.UpdatedAt = row.UpdatedAt
	return nil
}

// Update 覆盖次数与海报
func (r *SearchTermRepository) Update(ctx context.Context, id string, count int, posterURL string) error {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	res := r.db.WithContext(ctx).Model(&searchTermRow{}).
		Where("id = ?", pk).
		Updates(map[string]interface{}{
			"count":      count,
			"poster_url": posterURL,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTop 按次数倒序取前 limit 条
func (r *SearchTermRepository) ListTop(ctx context.Context, limit int) ([]model.SearchTerm, error) {
	var rows []searchTermRow
	err := r.db.WithContext(ctx).
		Order("count DESC").
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	terms := make([]model.SearchTerm, 0, len(rows))
	for _, row := range rows {
		terms = append(terms, row.toModel())
	}
	return terms, nil
}

// DeleteStale 清理超过指定天数未被搜索的词
func (r *SearchTermRepository) DeleteStale(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := r.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&searchTermRow{})
	return res.RowsAffected, res.Error
}
