package models

// Post represents a single content item as served by the remote posts API.
// Timestamps are ISO-8601 strings and are only ever set locally.
type Post struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    int    `gorm:"index;not null" json:"userId"`
	Title     string `gorm:"size:255;not null" json:"title"`
	Body      string `gorm:"type:text;not null" json:"body"`
	CreatedAt string `gorm:"-" json:"createdAt,omitempty"`
	EditedAt  string `gorm:"-" json:"editedAt,omitempty"`
}

// TableName keeps the SQL source pointed at the plain "posts" table.
func (Post) TableName() string {
	return "posts"
}

// PostInput is the user-supplied part of a create or edit intent.
type PostInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
