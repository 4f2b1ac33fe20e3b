package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// ProductData is the jsonb payload of a saved price observation.
type ProductData struct {
	Name string `json:"name"`
	// SearchKey is the Unicode lower-cased name that catalog search matches on.
	SearchKey string          `json:"search_key"`
	Price     money.Price     `json:"price"`
	Currency  string          `json:"currency"`
	OCRText   string          `json:"ocr_text,omitempty"`
	ImageURL  string          `json:"image_url"`
	Location  *types.Location `json:"location,omitempty"`
}

// Product is one saved row of the catalog.
type Product struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	Data      ProductData `gorm:"column:data;type:jsonb;serializer:json;not null"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// BeforeCreate assigns the id and the search key so sqlite and postgres
// behave the same.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Data.SearchKey = SearchKey(p.Data.Name)
	return nil
}

// SearchKey folds a name or query for case-insensitive matching. SQLite's
// LOWER only folds ASCII, so the key is computed here for both dialects.
func SearchKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
