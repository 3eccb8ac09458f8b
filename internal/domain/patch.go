package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ProductPatchColumns maps every patchable json field to its sql column.
// id, createdAt and updatedAt are owned by the store.
var ProductPatchColumns = map[string]string{
	"name":           "name",
	"category":       "category",
	"price":          "price",
	"originalPrice":  "original_price",
	"image":          "image",
	"imageUrl":       "image_url",
	"imageUrl2":      "image_url2",
	"rating":         "rating",
	"reviews":        "reviews",
	"inStock":        "in_stock",
	"badge":          "badge",
	"qrId":           "qr_id",
	"qrPassword":     "qr_password",
	"trackingStatus": "tracking_status",
	"ownerGender":    "owner_gender",
}

// ProductPatch is a validated partial update keyed by json field name
type ProductPatch map[string]interface{}

// Fields returns the patched json field names in a stable order
func (p ProductPatch) Fields() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Columns returns the patch keyed by sql column name
func (p ProductPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, len(p))
	for k, v := range p {
		cols[ProductPatchColumns[k]] = v
	}
	return cols
}

// NormalizeProductPatch checks a raw json patch and coerces every value to
// the type of the matching Product field. A null value clears the field.
func NormalizeProductPatch(raw map[string]interface{}) (ProductPatch, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty patch", ErrValidation)
	}
	for k := range raw {
		if _, ok := ProductPatchColumns[k]; !ok {
			return nil, fmt.Errorf("%w: field %q cannot be patched", ErrValidation, k)
		}
	}

	var scratch Product
	if err := decodeInto(raw, &scratch); err != nil {
		return nil, err
	}

	patch := make(ProductPatch, len(raw))
	for k := range raw {
		patch[k] = productField(&scratch, k)
	}
	if err := checkImageData(scratch.ImageURL, scratch.ImageURL2); err != nil {
		return nil, err
	}
	if err := scratch.validatePatched(patch); err != nil {
		return nil, err
	}
	return patch, nil
}

// ApplyPatch copies the patched fields onto p
func (p *Product) ApplyPatch(patch ProductPatch) error {
	return decodeInto(map[string]interface{}(patch), p)
}

func (p *Product) validatePatched(patch ProductPatch) error {
	if _, ok := patch["price"]; ok && p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if _, ok := patch["originalPrice"]; ok && p.OriginalPrice < 0 {
		return fmt.Errorf("%w: originalPrice must not be negative", ErrValidation)
	}
	if _, ok := patch["rating"]; ok && (p.Rating < 0 || p.Rating > 5) {
		return fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}
	if _, ok := patch["reviews"]; ok && p.Reviews < 0 {
		return fmt.Errorf("%w: reviews must not be negative", ErrValidation)
	}
	return nil
}

func decodeInto(raw map[string]interface{}, target *Product) error {
	return decode(raw, target, false)
}

func decode(raw map[string]interface{}, target interface{}, weak bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: weak,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

func productField(p *Product, name string) interface{} {
	switch name {
	case "name":
		return p.Name
	case "category":
		return p.Category
	case "price":
		return p.Price
	case "originalPrice":
		return p.OriginalPrice
	case "image":
		return p.Image
	case "imageUrl":
		return p.ImageURL
	case "imageUrl2":
		return p.ImageURL2
	case "rating":
		return p.Rating
	case "reviews":
		return p.Reviews
	case "inStock":
		return p.InStock
	case "badge":
		return p.Badge
	case "qrId":
		return p.QRID
	case "qrPassword":
		return p.QRPassword
	case "trackingStatus":
		return p.TrackingStatus
	case "ownerGender":
		return p.OwnerGender
	}
	return nil
}
