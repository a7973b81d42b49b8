package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

const (
	DefaultImageLimit = 20
	MaxImageLimit     = 100
)

// ImageQuery selects a page of catalogued images.
type ImageQuery struct {
	Page      int
	Limit     int
	Category  string
	SortBy    string
	SortOrder string
}

// orderClause only knows createdAt; anything else falls back to newest first.
func (q ImageQuery) orderClause() string {
	if q.SortBy == "createdAt" && q.SortOrder == "asc" {
		return "created_at asc, id asc"
	}
	return "created_at desc, id desc"
}

func (q ImageQuery) normalize() ImageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultImageLimit
	}
	if q.Limit > MaxImageLimit {
		q.Limit = MaxImageLimit
	}
	return q
}

// CreateImage stores img unless its URL is already catalogued. The bool
// reports whether a row was inserted.
func (d *DB) CreateImage(ctx context.Context, img domain.GalleryImage) (bool, error) {
	row := newImage(img)
	res := d.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to save image: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SaveImages catalogues a page of images and returns how many were new.
func (d *DB) SaveImages(ctx context.Context, images []domain.GalleryImage) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}
	rows := make([]Image, 0, len(images))
	for _, img := range images {
		rows = append(rows, newImage(img))
	}

	res := d.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to save images: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Images returns one page of the catalogue.
func (d *DB) Images(ctx context.Context, q ImageQuery) ([]Image, error) {
	q = q.normalize()

	tx := d.conn.WithContext(ctx).Model(&Image{})
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}

	images := make([]Image, 0, q.Limit)
	err := tx.Order(q.orderClause()).
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	return images, nil
}

func (d *DB) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := d.conn.WithContext(ctx).Order("id asc").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	return categories, nil
}

func (d *DB) CategoryByName(ctx context.Context, name string) (*Category, error) {
	var c Category
	err := d.conn.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &c, nil
}

// GetOrCreateCategory returns the row named c.Name, inserting c if absent.
func (d *DB) GetOrCreateCategory(ctx context.Context, c Category) (*Category, error) {
	row := c
	err := d.conn.WithContext(ctx).
		Where(Category{Name: c.Name}).
		Attrs(Category{APISource: c.APISource, IsNSFW: c.IsNSFW}).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create category %q: %w", c.Name, err)
	}
	return &row, nil
}

// PopulateCategories seeds the built-in categories and returns how many
// were inserted.
func (d *DB) PopulateCategories(ctx context.Context) (int, error) {
	seed := domain.DefaultCategories()
	rows := make([]Category, 0, len(seed))
	for _, c := range seed {
		rows = append(rows, Category{Name: c.Name, APISource: string(c.APISource), IsNSFW: c.IsNSFW})
	}

	res := d.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to populate categories: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ImagesMissingDimensions returns up to limit images never inspected, oldest first.
func (d *DB) ImagesMissingDimensions(ctx context.Context, limit int) ([]Image, error) {
	var images []Image
	err := d.conn.WithContext(ctx).
		Where("width IS NULL OR height IS NULL").
		Order("id asc").
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query images without dimensions: %w", err)
	}
	return images, nil
}

// UpdateDimensions stores inspected dimensions. Zero values mark the image as
// inspected but unknown so it is not picked up again.
func (d *DB) UpdateDimensions(ctx context.Context, id uint, width, height int) error {
	err := d.conn.WithContext(ctx).
		Model(&Image{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"width": width, "height": height}).Error
	if err != nil {
		return fmt.Errorf("failed to update dimensions for image %d: %w", id, err)
	}
	return nil
}
