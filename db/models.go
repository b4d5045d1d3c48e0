package db

import "time"

// HiddenGame marks a catalog entry the user chose not to see.
type HiddenGame struct {
	Name string `gorm:"primaryKey"`
}

// ReleaseCache remembers the last successfully resolved release of a repository.
type ReleaseCache struct {
	Repository string `gorm:"primaryKey"`
	Tag        string
	Body       string
	Assets     string // JSON encoded []client.Asset
	FetchedAt  time.Time
}

// CustomIcon maps a game to a user supplied icon copied into the cache folder.
type CustomIcon struct {
	GameName string `gorm:"primaryKey"`
	Path     string
}

// Token holds the GitHub access token. Only one row (ID 1) is ever stored.
type Token struct {
	ID          uint   `gorm:"primaryKey"`
	AccessToken string `json:"access_token,omitempty"`
	RateLimit   int    `json:"rate_limit,omitempty"` // core quota reported when the token was verified
	VerifiedAt  time.Time
}
