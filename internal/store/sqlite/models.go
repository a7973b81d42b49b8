package sqlite

import (
	"time"

	"github.com/MrSnakeDoc/nekogallery/internal/domain"
)

// Category is one browsable category. Waifu categories are stored prefixed.
type Category struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	APISource string `gorm:"type:varchar(32);not null" json:"apiSource"`
	IsNSFW    bool   `gorm:"not null" json:"isNsfw"`
}

// Image is a catalogued upstream image.
type Image struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	URL       string    `gorm:"type:text;not null;uniqueIndex" json:"url"`
	Width     *int      `gorm:"type:integer" json:"width"`
	Height    *int      `gorm:"type:integer" json:"height"`
	Category  *string   `gorm:"type:varchar(100);index" json:"category"`
	APISource string    `gorm:"type:varchar(32);not null" json:"apiSource"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// HistoryRecord is one viewed image, keyed by URL.
type HistoryRecord struct {
	URL       string  `gorm:"primaryKey;type:text"`
	APISource string  `gorm:"type:varchar(32);not null"`
	Category  *string `gorm:"type:varchar(100)"`
	Width     int
	Height    int
	Timestamp int64 `gorm:"not null;index"`
}

func (Category) TableName() string {
	return "categories"
}

func (Image) TableName() string {
	return "images"
}

func (HistoryRecord) TableName() string {
	return "history"
}

func newImage(img domain.GalleryImage) Image {
	row := Image{
		URL:       img.URL,
		Category:  img.Category,
		APISource: string(img.APISource),
	}
	if img.Width > 0 && img.Height > 0 {
		w, h := img.Width, img.Height
		row.Width, row.Height = &w, &h
	}
	return row
}

// GalleryImage converts the row back to the normalized record.
func (i Image) GalleryImage() domain.GalleryImage {
	img := domain.GalleryImage{
		URL:       i.URL,
		APISource: domain.APISource(i.APISource),
		Category:  i.Category,
	}
	if i.Width != nil {
		img.Width = *i.Width
	}
	if i.Height != nil {
		img.Height = *i.Height
	}
	return img
}

func newHistoryRecord(item domain.HistoryItem) HistoryRecord {
	return HistoryRecord{
		URL:       item.URL,
		APISource: string(item.APISource),
		Category:  item.Category,
		Width:     item.Width,
		Height:    item.Height,
		Timestamp: item.Timestamp,
	}
}

func (r HistoryRecord) HistoryItem() domain.HistoryItem {
	return domain.HistoryItem{
		GalleryImage: domain.GalleryImage{
			URL:       r.URL,
			APISource: domain.APISource(r.APISource),
			Category:  r.Category,
			Width:     r.Width,
			Height:    r.Height,
		},
		Timestamp: r.Timestamp,
	}
}
