package models

import "time"

// CartSession persists the serialized line items of one storefront cart session.
type CartSession struct {
	SessionID string    `gorm:"column:session_id;primaryKey"`
	Items     string    `gorm:"column:items;not null"`
	ItemCount int       `gorm:"column:item_count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSession) TableName() string {
	return "cart_sessions"
}
