package query

import "github.com/cppla/postboard/models"

// Page is one fixed-size window over a derived view.
type Page struct {
	Data       []models.Post `json:"data"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

// Paginate cuts page (1-based) of size limit out of posts. Pages past the end
// have empty data; page and limit below 1 are treated as 1.
func Paginate(posts []models.Post, page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	total := len(posts)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	data := make([]models.Post, end-start)
	copy(data, posts[start:end])
	return Page{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}
