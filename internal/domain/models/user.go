package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account holder.
//
// NOTE:
//   - ProjectIDs is the back-reference list of projects the user belongs to.
//     It must mirror project membership: user in project.members <=> project in
//     user.project_ids.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FullName     string               `bson:"full_name" json:"full_name"`
	FullNameCI   string               `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Status       string               `bson:"status,omitempty" json:"status,omitempty"`
	ProjectIDs   []primitive.ObjectID `bson:"project_ids" json:"project_ids"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
