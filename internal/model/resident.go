package model

import (
	"strings"
	"time"
)

// Language is a resident's interface language.
type Language string

const (
	LanguageRU  Language = "RU"
	LanguageENG Language = "ENG"
	LanguageCN  Language = "CN"
)

// ParseLanguage normalises a language code. ok is false for unknown codes.
func ParseLanguage(s string) (Language, bool) {
	switch l := Language(strings.ToUpper(strings.TrimSpace(s))); l {
	case LanguageRU, LanguageENG, LanguageCN:
		return l, true
	case "EN":
		return LanguageENG, true
	case "ZH":
		return LanguageCN, true
	}
	return "", false
}

// Resident is a dormitory resident who can book machines.
type Resident struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	RoomID     int       `gorm:"not null" json:"room_id"`
	IDCard     string    `gorm:"size:32;index" json:"-"`
	ChannelID  *string   `gorm:"size:128;uniqueIndex" json:"-"` // nil until bound
	LastName   string    `gorm:"size:128;not null;index:idx_resident_full_name" json:"last_name"`
	FirstName  string    `gorm:"size:128;not null;index:idx_resident_full_name" json:"first_name"`
	Patronymic string    `gorm:"size:128;index:idx_resident_full_name" json:"patronymic"`
	Language   Language  `gorm:"size:8;not null;default:'RU'" json:"language"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// FullName returns "Last First Patronymic" without trailing blanks.
func (r Resident) FullName() string {
	return strings.TrimSpace(strings.Join([]string{r.LastName, r.FirstName, r.Patronymic}, " "))
}
