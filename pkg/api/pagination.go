package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type PaginationParams struct {
	Limit int
	// Before is the cursor of the page that was shown last. Empty starts
	// from the most recent items.
	Before string
}

const DefaultLimit = 50

const MaxLimit = 200

// PaginationMetadata describes the page returned by Paginate
type PaginationMetadata struct {
	Total int
	Limit int
	// PrevCursor fetches the older items. It is empty on the oldest page.
	PrevCursor string
}

type cursor struct {
	// Index is the position of the first item of the page
	Index int `json:"i"`
}

func encodeCursor(index int) string {
	buf, _ := json.Marshal(cursor{Index: index})
	return base64.URLEncoding.EncodeToString(buf)
}

func decodeCursor(encoded string) (int, error) {
	buf, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return 0, fmt.Errorf("failed to decode cursor: %w", err)
	}

	var c cursor
	if err := json.Unmarshal(buf, &c); err != nil {
		return 0, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	if c.Index < 0 {
		return 0, fmt.Errorf("invalid cursor index %d", c.Index)
	}
	return c.Index, nil
}

// Paginate returns the most recent items older than params.Before, oldest
// first. items must be in chronological order.
func Paginate[T any](items []T, params PaginationParams) ([]T, *PaginationMetadata, error) {
	total := len(items)

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	end := total
	if params.Before != "" {
		before, err := decodeCursor(params.Before)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid before cursor: %w", err)
		}
		end = min(before, total)
	}
	if end <= 0 {
		return []T{}, &PaginationMetadata{Total: total}, nil
	}

	start := max(end-limit, 0)
	page := items[start:end]

	meta := &PaginationMetadata{
		Total: total,
		Limit: len(page),
	}
	// Only set cursor if there are older items
	if start > 0 {
		meta.PrevCursor = encodeCursor(start)
	}

	return page, meta, nil
}
