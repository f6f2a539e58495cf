package model

import "time"

// PushSubscription holds a browser push subscription bound to a resident's channel.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	ChannelID string    `gorm:"size:128;not null;index" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
}
