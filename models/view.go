package models

import "fmt"

// SortColumn names the field the derived view is ordered by.
type SortColumn string

const (
	SortByID        SortColumn = "id"
	SortByTitle     SortColumn = "title"
	SortByCreatedAt SortColumn = "createdAt"
)

// SortOrder is the direction of the derived view.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ViewParams governs the derived display order and content.
type ViewParams struct {
	SortBy    SortColumn `json:"sortBy"`
	SortOrder SortOrder  `json:"sortOrder"`
	Search    string     `json:"search"`
}

// DefaultViewParams is the state a fresh store starts with.
func DefaultViewParams() ViewParams {
	return ViewParams{SortBy: SortByID, SortOrder: SortAsc}
}

// ParseSortColumn validates a column name coming from the outside.
func ParseSortColumn(s string) (SortColumn, error) {
	switch c := SortColumn(s); c {
	case SortByID, SortByTitle, SortByCreatedAt:
		return c, nil
	}
	return "", fmt.Errorf("invalid sort column %q", s)
}

// ParseSortOrder validates a sort direction coming from the outside.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case SortAsc, SortDesc:
		return o, nil
	}
	return "", fmt.Errorf("invalid sort order %q", s)
}

// Toggle returns the opposite direction.
func (o SortOrder) Toggle() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}
