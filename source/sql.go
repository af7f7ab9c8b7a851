package source

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/postboard/models"
)

// SQL reads the collection from a posts table.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

// Migrate creates the posts table when it is missing.
func (s *SQL) Migrate() error {
	if s.db.Migrator().HasTable(&models.Post{}) {
		return nil
	}
	return s.db.AutoMigrate(&models.Post{})
}

func (s *SQL) FetchAll(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, &LoadError{Op: msgFetchPosts, Err: err}
	}
	return posts, nil
}

func (s *SQL) FetchOne(ctx context.Context, id int) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, &LoadError{Op: msgFetchPost, Status: http.StatusNotFound}
	}
	if err != nil {
		return models.Post{}, &LoadError{Op: msgFetchPost, Err: err}
	}
	return post, nil
}

// Import upserts posts by id.
func (s *SQL) Import(ctx context.Context, posts []models.Post) (int64, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "title", "body"}),
		}).
		CreateInBatches(posts, 100)
	return res.RowsAffected, res.Error
}
