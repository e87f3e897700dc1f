package models

import "time"

// User is the locally-cached identity for a token holder. Accounts are
// issued elsewhere; rows here are upserted from validated token claims so
// member lists and history can resolve usernames.
type User struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL string    `db:"avatar_url" json:"avatar_url"`
	LastSeen  time.Time `db:"last_seen" json:"last_seen"`
}

// UserRef identifies a user in broadcast payloads.
type UserRef struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
