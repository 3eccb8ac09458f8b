package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxImageDataLen caps imageUrl and imageUrl2, which may carry inline encoded image data
	MaxImageDataLen = 700000

	DefaultProductImage  = "📦"
	DefaultProductRating = 4.5
)

// Product is a catalog entry. ID is assigned by the server once and never changes.
type Product struct {
	ID             string    `gorm:"column:id;primaryKey;size:64" json:"id" bson:"_id"`
	Name           string    `gorm:"column:name;index" json:"name" bson:"name"`
	Category       string    `gorm:"column:category;index" json:"category" bson:"category"`
	Price          float64   `gorm:"column:price" json:"price" bson:"price"`
	OriginalPrice  float64   `gorm:"column:original_price" json:"originalPrice" bson:"originalPrice"`
	Image          string    `gorm:"column:image;size:64" json:"image" bson:"image"`
	ImageURL       string    `gorm:"column:image_url;type:text" json:"imageUrl" bson:"imageUrl"`
	ImageURL2      string    `gorm:"column:image_url2;type:text" json:"imageUrl2" bson:"imageUrl2"`
	Rating         float64   `gorm:"column:rating" json:"rating" bson:"rating"`
	Reviews        int       `gorm:"column:reviews" json:"reviews" bson:"reviews"`
	InStock        bool      `gorm:"column:in_stock;index" json:"inStock" bson:"inStock"`
	Badge          string    `gorm:"column:badge" json:"badge,omitempty" bson:"badge,omitempty"`
	QRID           string    `gorm:"column:qr_id" json:"qrId" bson:"qrId"`
	QRPassword     string    `gorm:"column:qr_password" json:"qrPassword" bson:"qrPassword"`
	TrackingStatus string    `gorm:"column:tracking_status" json:"trackingStatus" bson:"trackingStatus"`
	OwnerGender    string    `gorm:"column:owner_gender" json:"ownerGender" bson:"ownerGender"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updatedAt" bson:"updatedAt"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "shop_product"
}

// ApplyDefaults fills the fields a new product is created with when the caller left them empty
func (p *Product) ApplyDefaults() {
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.Image) == "" {
		p.Image = DefaultProductImage
	}
	if p.OriginalPrice == 0 {
		p.OriginalPrice = p.Price
	}
	if p.Rating == 0 {
		p.Rating = DefaultProductRating
	}
	if p.TrackingStatus == "" {
		p.TrackingStatus = TrackingReceived
	}
	if p.OwnerGender == "" {
		p.OwnerGender = "none"
	}
}

// Validate checks the invariants a stored product must hold
func (p *Product) Validate() error {
	if p.Price < 0 || p.OriginalPrice < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if p.Rating < 0 || p.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	if p.Reviews < 0 {
		return fmt.Errorf("%w: reviews must not be negative", ErrValidation)
	}
	return checkImageData(p.ImageURL, p.ImageURL2)
}

// Identities returns every external key the product is known by
func (p Product) Identities() []string {
	return []string{p.ID}
}

func checkImageData(urls ...string) error {
	for i, u := range urls {
		if len(u) > MaxImageDataLen {
			return fmt.Errorf("%w: image %d exceeds %d characters", ErrValidation, i+1, MaxImageDataLen)
		}
	}
	return nil
}
