package dto

import (
	"net/url"
	"strconv"
)

// Pagination bounds applied to every list endpoint.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads page/per_page from a query string and clamps them
// to sane bounds.
func ParsePagination(q url.Values) PaginationParams {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return PaginationParams{Page: page, PerPage: perPage}
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// NewPaginated wraps a result page with its count metadata.
func NewPaginated(data interface{}, total int64, p PaginationParams) PaginatedResponse {
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		pages++
	}
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
	}
}
