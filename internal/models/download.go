package models

import "time"

// Download records one successful delivery. Rows are append-only.
type Download struct {
	ID           uint      `gorm:"primaryKey"`
	Link         string    `gorm:"index:idx_download_link_user"`
	TelegramID   int64     `gorm:"index:idx_download_link_user"`
	DownloadedAt time.Time `gorm:"index"`
	FileSize     int64
}
