package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Repair status ladder. The order is advisory, nothing enforces it.
const (
	TrackingReceived       = "Received"
	TrackingDiagnostics    = "Diagnostics"
	TrackingInProgress     = "In Progress"
	TrackingPartsOrdered   = "Parts Ordered"
	TrackingQualityCheck   = "Quality Check"
	TrackingReadyForPickup = "Ready for Pickup"
	TrackingCompleted      = "Completed"

	DefaultEstimatedDays = 2
)

var TrackingStatuses = []string{
	TrackingReceived,
	TrackingDiagnostics,
	TrackingInProgress,
	TrackingPartsOrdered,
	TrackingQualityCheck,
	TrackingReadyForPickup,
	TrackingCompleted,
}

// NextStatus returns the status after s on the ladder, or s itself when s is last or unknown
func NextStatus(s string) string {
	for i, v := range TrackingStatuses {
		if v == s && i+1 < len(TrackingStatuses) {
			return TrackingStatuses[i+1]
		}
	}
	return s
}

// Tracking is a repair job keyed by the QR id printed for the customer.
// CreatedAt and LastUpdated are display strings written by the client.
type Tracking struct {
	QRID          string    `gorm:"column:qr_id;primaryKey;size:128" json:"qrId" bson:"qrId"`
	QRPassword    string    `gorm:"column:qr_password" json:"qrPassword" bson:"qrPassword"`
	CustomerName  string    `gorm:"column:customer_name" json:"customerName" bson:"customerName"`
	ProductName   string    `gorm:"column:product_name" json:"productName" bson:"productName"`
	DeviceModel   string    `gorm:"column:device_model" json:"deviceModel" bson:"deviceModel"`
	Contact       string    `gorm:"column:contact" json:"contact" bson:"contact"`
	Status        string    `gorm:"column:status;index" json:"status" bson:"status"`
	Issue         string    `gorm:"column:issue;type:text" json:"issue" bson:"issue"`
	EstimatedDays int       `gorm:"column:estimated_days" json:"estimatedDays" bson:"estimatedDays"`
	CreatedAt     string    `gorm:"column:created_at" json:"createdAt" bson:"createdAt"`
	LastUpdated   string    `gorm:"column:last_updated" json:"lastUpdated" bson:"lastUpdated"`
	RecordedAt    time.Time `gorm:"column:recorded_at;index" json:"recordedAt" bson:"recordedAt"`
}

// TableName Specify table name
func (Tracking) TableName() string {
	return "shop_tracking"
}

func (t *Tracking) ApplyDefaults() {
	t.QRID = strings.TrimSpace(t.QRID)
	if t.EstimatedDays <= 0 {
		t.EstimatedDays = DefaultEstimatedDays
	}
	if t.Status == "" {
		t.Status = TrackingReceived
	}
}

func (t *Tracking) Validate() error {
	if strings.TrimSpace(t.QRID) == "" {
		return fmt.Errorf("%w: qrId is required", ErrValidation)
	}
	return nil
}

// LastUpdatedTime parses the free text lastUpdated or createdAt value.
// The zero time is returned when neither parses.
func (t Tracking) LastUpdatedTime() time.Time {
	for _, s := range []string{t.LastUpdated, t.CreatedAt} {
		if s == "" {
			continue
		}
		if v, err := dateparse.ParseLocal(s); err == nil {
			return v
		}
	}
	return time.Time{}
}

func (t Tracking) Identities() []string {
	return []string{t.QRID}
}
