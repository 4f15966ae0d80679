package domain

import (
	"strings"
	"time"
)

// Profile limits, counted in characters.
const (
	UsernameMaxLen = 20
	BioMaxLen      = 160
)

// AnonymousName is displayed when a user has no usable username.
const AnonymousName = "名無し"

// User is the public profile stored at users/{uid}.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Bio            string    `json:"bio"`
	FollowerCount  Count     `json:"followerCount"`
	FollowingCount Count     `json:"followingCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DisplayName returns the trimmed username or AnonymousName.
func (u *User) DisplayName() string {
	if u == nil {
		return AnonymousName
	}
	return DisplayNameOf(u.Username)
}

// DisplayNameOf applies the display fallback to a raw username.
func DisplayNameOf(username string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	return AnonymousName
}

// SetDocID fills ID from the document key when the stored body lacks it.
func (u *User) SetDocID(id string) {
	if u.ID == "" {
		u.ID = id
	}
}
