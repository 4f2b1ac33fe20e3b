package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/gdkp/gdkp-backend/pkg/db/models"
	"github.com/gdkp/gdkp-backend/pkg/money"
	"github.com/gdkp/gdkp-backend/pkg/types"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        money.Price     `json:"price"`
	Currency     string          `json:"currency"`
	DisplayPrice string          `json:"display_price"`
	OCRText      string          `json:"ocr_text,omitempty"`
	ImageURL     string          `json:"image_url"`
	Location     *types.Location `json:"location,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		Name:         p.Data.Name,
		Price:        p.Data.Price,
		Currency:     p.Data.Currency,
		DisplayPrice: money.FormatPrice(p.Data.Price, p.Data.Currency),
		OCRText:      p.Data.OCRText,
		ImageURL:     p.Data.ImageURL,
		Location:     p.Data.Location,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
