package gormstore

import (
	"context"
	"time"

	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/pkg/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// orderRow keeps the customer record and the item snapshot as json columns,
// so a stored order never joins back to the product table.
type orderRow struct {
	OrderID       string                                 `gorm:"column:order_id;primaryKey;size:128"`
	Customer      datatypes.JSONType[domain.Customer]    `gorm:"column:customer"`
	Items         datatypes.JSONType[[]domain.OrderItem] `gorm:"column:items"`
	Total         float64                                `gorm:"column:total"`
	PaymentMethod string                                 `gorm:"column:payment_method"`
	Status        string                                 `gorm:"column:status;index"`
	OrderDate     time.Time                              `gorm:"column:order_date;index"`
	CreatedAt     time.Time                              `gorm:"column:created_at"`
	UpdatedAt     time.Time                              `gorm:"column:updated_at"`
}

// TableName Specify table name
func (orderRow) TableName() string {
	return "shop_order"
}

func toOrderRow(o *domain.Order) *orderRow {
	return &orderRow{
		OrderID:       o.OrderID,
		Customer:      datatypes.NewJSONType(o.Customer),
		Items:         datatypes.NewJSONType(o.Items),
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		OrderDate:     o.OrderDate,
	}
}

func (r *orderRow) toDomain() domain.Order {
	items := r.Items.Data()
	if items == nil {
		items = []domain.OrderItem{}
	}
	return domain.Order{
		OrderID:       r.OrderID,
		Customer:      r.Customer.Data(),
		Items:         items,
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		Status:        r.Status,
		OrderDate:     r.OrderDate,
	}
}

func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	item := *o
	item.Items = append([]domain.OrderItem(nil), o.Items...)
	if item.OrderID == "" {
		item.OrderID = common.NextID()
	}
	item.ApplyDefaults(time.Now())
	if err := item.Validate(); err != nil {
		return nil, err
	}
	row := toOrderRow(&item)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, translate(err, "create order "+item.OrderID)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var rows []orderRow
	if err := s.db.WithContext(ctx).Order("order_date DESC").Find(&rows).Error; err != nil {
		return nil, translate(err, "list orders")
	}
	out := make([]domain.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var row orderRow
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return nil, translate(err, "get order "+orderID)
	}
	out := row.toDomain()
	return &out, nil
}

func (s *Store) UpdateOrder(ctx context.Context, orderID string, patch domain.Patch) (*domain.Order, error) {
	var out domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row orderRow
		if err := tx.Where("order_id = ?", orderID).First(&row).Error; err != nil {
			return err
		}
		out = row.toDomain()
		if err := out.ApplyPatch(patch); err != nil {
			return err
		}
		if err := out.Validate(); err != nil {
			return err
		}
		next := toOrderRow(&out)
		next.CreatedAt = row.CreatedAt
		return tx.Save(next).Error
	})
	if err != nil {
		return nil, translate(err, "update order "+orderID)
	}
	return &out, nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	res := s.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&orderRow{})
	if res.Error != nil {
		return translate(res.Error, "delete order "+orderID)
	}
	if res.RowsAffected == 0 {
		return translate(domain.ErrNotFound, "delete order "+orderID)
	}
	return nil
}
