package keycloak

import (
	"context"
	"net/url"
	"strconv"
)

// DefaultPageSize is the page size used against Keycloak's list endpoints.
const DefaultPageSize = 300

// PageFunc fetches at most limit items starting at offset first.
type PageFunc[T any] func(ctx context.Context, first, limit int) ([]T, error)

// Paginate collects every item from fetch.
//
// It requests pages of pageSize items, advancing the offset by the number of items
// actually returned. It stops after an empty page or a page holding fewer than
// pageSize items, so a final page of exactly pageSize items costs one extra,
// empty request.
func Paginate[T any](ctx context.Context, pageSize int, fetch PageFunc[T]) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		all   []T
		first int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck
		}

		page, err := fetch(ctx, first, pageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)

		if len(page) < pageSize {
			return all, nil
		}

		first += len(page)
	}
}

// PageURL returns rawURL with query plus the first and max parameters.
func PageURL(rawURL string, query url.Values, first, limit int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}

	q.Set("first", strconv.Itoa(first))
	q.Set("max", strconv.Itoa(limit))

	return rawURL + "?" + q.Encode()
}
