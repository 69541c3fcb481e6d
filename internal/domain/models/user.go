// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Auth providers. A user signs in either with a local password ("email")
// or through a trusted identity provider ("external").
const (
	AuthProviderEmail    = "email"
	AuthProviderExternal = "external"
)

// Location is the optional home city/country on a profile.
type Location struct {
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	Country string `bson:"country,omitempty" json:"country,omitempty"`
}

// User is an account record in the users collection.
//
// NOTE:
//   - PasswordHash, RefreshToken, VerifyToken and VerifyTokenExpiry are
//     tagged json:"-" and must only leave the process through Public().
//   - ExternalID is a pointer so accounts without one are omitted from the
//     sparse unique index.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username       string             `bson:"username" json:"username"`
	Email          string             `bson:"email" json:"email"`
	Phone          string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Location       Location           `bson:"location,omitempty" json:"location,omitempty"`
	AdditionalInfo string             `bson:"additional_info,omitempty" json:"additional_info,omitempty"`
	ProfilePicture string             `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"`

	AuthProvider string  `bson:"auth_provider" json:"auth_provider"`
	ExternalID   *string `bson:"external_id,omitempty" json:"-"`
	PasswordHash string  `bson:"password_hash,omitempty" json:"-"`

	IsVerified        bool       `bson:"is_verified" json:"is_verified"`
	VerifyToken       string     `bson:"verify_token,omitempty" json:"-"`
	VerifyTokenExpiry *time.Time `bson:"verify_token_expiry,omitempty" json:"-"`
	RefreshToken      string     `bson:"refresh_token,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PublicUser is the only shape of a user that is returned to clients.
type PublicUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Location       Location  `json:"location"`
	AdditionalInfo string    `json:"additional_info,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	AuthProvider   string    `json:"auth_provider"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Public strips credentials and token state from u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID.Hex(),
		Username:       u.Username,
		Email:          u.Email,
		Phone:          u.Phone,
		Location:       u.Location,
		AdditionalInfo: u.AdditionalInfo,
		ProfilePicture: u.ProfilePicture,
		AuthProvider:   u.AuthProvider,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// UsesPassword reports whether u logs in with a local password.
func (u User) UsesPassword() bool {
	return u.AuthProvider == AuthProviderEmail
}

// IsValidAuthProvider checks a provider value against the known set.
func IsValidAuthProvider(p string) bool {
	return p == AuthProviderEmail || p == AuthProviderExternal
}
