package product

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/gdkp/gdkp-backend/pkg/db/models"
)

const likeEscape = `\`

// Repository reads and writes the products table.
type Repository struct {
	db     *gorm.DB
	keyCol string
}

// NewRepository builds a repository for the given connection. The dialect
// decides how the search key is extracted from the jsonb payload.
func NewRepository(db *gorm.DB) *Repository {
	keyCol := "data->>'search_key'"
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		keyCol = "json_extract(data, '$.search_key')"
	}
	return &Repository{db: db, keyCol: keyCol}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, keyCol: r.keyCol}
}

// CreateBatch inserts all rows in one statement.
func (r *Repository) CreateBatch(ctx context.Context, rows []models.Product) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// SearchByName returns rows whose name contains term, case-insensitively,
// newest first. Matching runs against the stored search key, which is folded
// in Go so non-ASCII names match on every dialect.
func (r *Repository) SearchByName(ctx context.Context, term string, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where(r.keyCol+" LIKE ? ESCAPE '"+likeEscape+"'", "%"+escapeLike(models.SearchKey(term))+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListRecent returns the newest rows.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}
