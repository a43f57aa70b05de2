package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type BlogPost struct {
	ID          uuid.UUID                   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AuthorID    uuid.UUID                   `json:"authorId" gorm:"type:uuid;not null;index"`
	Title       string                      `json:"title" gorm:"not null"`
	Slug        string                      `json:"slug" gorm:"uniqueIndex;not null"`
	Summary     string                      `json:"summary"`
	Content     string                      `json:"content" gorm:"type:text;not null"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Published   bool                        `json:"published" gorm:"not null;default:false;index"`
	PublishedAt *time.Time                  `json:"publishedAt"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt              `json:"-" gorm:"index"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}
