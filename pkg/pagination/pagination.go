package pagination

import (
	"fmt"
	"strconv"
)

// Params represents pagination query parameters (1-based page)
type Params struct {
	Page   int
	Size   int
	Offset int
}

// Page is the paginated response envelope
type Page[T any] struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	Items      []T   `json:"items"`
}

// Parse parses page/size query values. Empty values take defaults; sizes are clamped to [1, maxSize].
func Parse(pageStr, sizeStr string, defaultSize, maxSize int) (*Params, error) {
	page := 1
	size := defaultSize

	if pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, fmt.Errorf("invalid page parameter: %w", err)
		}
		if p > 1 {
			page = p
		}
	}

	if sizeStr != "" {
		s, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid size parameter: %w", err)
		}
		size = s
	}

	return New(page, size, defaultSize, maxSize), nil
}

// New builds Params from already-parsed values
func New(page, size, defaultSize, maxSize int) *Params {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return &Params{Page: page, Size: size, Offset: (page - 1) * size}
}

// CalculateTotalPages calculates total pages from total count and size
func CalculateTotalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// NewPage wraps items with their pagination metadata
func NewPage[T any](params *Params, total int64, items []T) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Page:       params.Page,
		Size:       params.Size,
		Total:      total,
		TotalPages: CalculateTotalPages(total, params.Size),
		Items:      items,
	}
}
