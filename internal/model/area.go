package model

import "time"

// Area is a user-defined life area tasks can reference (work, health, ...).
type Area struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"uniqueIndex:idx_user_area_name"`
	Name      string `gorm:"uniqueIndex:idx_user_area_name"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Tasks     []Task `gorm:"foreignKey:AreaID"`
}
