package services

import "context"

// ReviewStepKeyMapper walks every key of a review step query page by page so
// an unbounded result never has to be held in memory at once.
type ReviewStepKeyMapper struct {
	store    ReviewStore
	query    ReviewStepQuery
	pageSize int
}

func NewReviewStepKeyMapper(store ReviewStore, query ReviewStepQuery, pageSize int) *ReviewStepKeyMapper {
	if pageSize <= 0 {
		pageSize = ExpiryPageSize
	}
	return &ReviewStepKeyMapper{store: store, query: query, pageSize: pageSize}
}

// Run calls fn once per key and returns how many keys were visited. It stops
// between pages when ctx is done; work done for earlier pages stays committed.
func (m *ReviewStepKeyMapper) Run(ctx context.Context, fn func(key string)) (int, error) {
	visited := 0
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		keys, next, err := m.store.QueryStepKeys(ctx, m.query, cursor, m.pageSize)
		if err != nil {
			return visited, err
		}
		for _, key := range keys {
			fn(key)
			visited++
		}
		if next == "" {
			return visited, nil
		}
		cursor = next
	}
}
