package gormstore

import (
	"context"
	"time"

	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/store"
	"github.com/talkincode/shopsync/pkg/common"
	"gorm.io/gorm"
)

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	item := *p
	item.ID = common.NextID()
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, translate(err, "create product")
	}
	return &item, nil
}

func (s *Store) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 || limit > store.DefaultListLimit {
		limit = store.DefaultListLimit
	}
	rows := make([]domain.Product, 0)
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "list products")
	}
	return rows, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err, "get product")
	}
	return &p, nil
}

func (s *Store) PatchProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	var p domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		cols := patch.Columns()
		cols["updated_at"] = time.Now()
		if err := tx.Model(&domain.Product{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&p).Error
	})
	if err != nil {
		return nil, translate(err, "patch product")
	}
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{})
	if res.Error != nil {
		return translate(res.Error, "delete product")
	}
	if res.RowsAffected == 0 {
		return translate(domain.ErrNotFound, "delete product")
	}
	return nil
}
