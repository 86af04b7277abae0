package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// User is a registered account. Google-federated users have no password hash.
type User struct {
	ID           surrealmodels.RecordID `json:"id"`
	Email        string                 `json:"email"`
	PasswordHash *string                `json:"password_hash,omitempty"`
	Google       bool                   `json:"google"`
	CreatedAt    time.Time              `json:"created_at"`
}
