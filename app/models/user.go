package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/leppupy/pkg/auth"
)

// Roles.
const (
	RoleClient = auth.RoleClient
	RoleAdmin  = auth.RoleAdmin
)

// User is a shop account. Clients log in once their email is verified and
// a password has been set with the emailed code.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"     json:"id"`
	Name             string             `bson:"client_name"       json:"client_name"`
	Phone            string             `bson:"phone"             json:"phone"`
	Email            string             `bson:"email"             json:"email"`
	Role             string             `bson:"access"            json:"access"`
	PasswordDigest   string             `bson:"contraseña"        json:"-"`
	Verified         bool               `bson:"auth"              json:"auth"`
	VerificationCode *string            `bson:"verification_code" json:"-"`
	CreatedAt        time.Time          `bson:"created_at"        json:"created_at"`
}

// IsAdmin reports whether u has the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
