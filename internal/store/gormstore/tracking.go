package gormstore

import (
	"context"
	"time"

	"github.com/talkincode/shopsync/internal/domain"
	"gorm.io/gorm"
)

func (s *Store) CreateTracking(ctx context.Context, t *domain.Tracking) (*domain.Tracking, error) {
	item := *t
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.RecordedAt = time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Tracking{}).Where("qr_id = ?", item.QRID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrDuplicateKey
		}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, translate(err, "create tracking "+item.QRID)
	}
	return &item, nil
}

func (s *Store) ListTracking(ctx context.Context) ([]domain.Tracking, error) {
	rows := make([]domain.Tracking, 0)
	if err := s.db.WithContext(ctx).Order("recorded_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(err, "list tracking")
	}
	return rows, nil
}

func (s *Store) GetTracking(ctx context.Context, qrID string) (*domain.Tracking, error) {
	var t domain.Tracking
	if err := s.db.WithContext(ctx).Where("qr_id = ?", qrID).First(&t).Error; err != nil {
		return nil, translate(err, "get tracking "+qrID)
	}
	return &t, nil
}

func (s *Store) UpdateTracking(ctx context.Context, qrID string, patch domain.Patch) (*domain.Tracking, error) {
	var t domain.Tracking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("qr_id = ?", qrID).First(&t).Error; err != nil {
			return err
		}
		if err := t.ApplyPatch(patch); err != nil {
			return err
		}
		return tx.Save(&t).Error
	})
	if err != nil {
		return nil, translate(err, "update tracking "+qrID)
	}
	return &t, nil
}

func (s *Store) DeleteTracking(ctx context.Context, qrID string) error {
	res := s.db.WithContext(ctx).Where("qr_id = ?", qrID).Delete(&domain.Tracking{})
	if res.Error != nil {
		return translate(res.Error, "delete tracking "+qrID)
	}
	if res.RowsAffected == 0 {
		return translate(domain.ErrNotFound, "delete tracking "+qrID)
	}
	return nil
}
