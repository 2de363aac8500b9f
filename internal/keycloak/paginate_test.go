package keycloak_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslokommune/okdata-permission-api/internal/keycloak"
)

type fakePager struct {
	items    []int
	capPage  int
	requests [][2]int
}

func (f *fakePager) fetch(_ context.Context, first, limit int) ([]int, error) {
	f.requests = append(f.requests, [2]int{first, limit})

	if f.capPage > 0 && limit > f.capPage {
		limit = f.capPage
	}

	if first >= len(f.items) {
		return nil, nil
	}

	return f.items[first:min(first+limit, len(f.items))], nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}

	return out
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name         string
		items        int
		pageSize     int
		capPage      int
		wantItems    int
		wantRequests [][2]int
	}{
		{
			name:         "empty",
			items:        0,
			pageSize:     3,
			wantItems:    0,
			wantRequests: [][2]int{{0, 3}},
		},
		{
			name:         "short last page",
			items:        7,
			pageSize:     3,
			wantItems:    7,
			wantRequests: [][2]int{{0, 3}, {3, 3}, {6, 3}},
		},
		{
			name:         "last page exactly page size ends on empty page",
			items:        6,
			pageSize:     3,
			wantItems:    6,
			wantRequests: [][2]int{{0, 3}, {3, 3}, {6, 3}},
		},
		{
			name:         "provider returning fewer than requested ends the listing",
			items:        10,
			pageSize:     5,
			capPage:      2,
			wantItems:    2,
			wantRequests: [][2]int{{0, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakePager{items: seq(tt.items), capPage: tt.capPage}

			got, err := keycloak.Paginate(context.Background(), tt.pageSize, f.fetch)
			require.NoError(t, err)
			assert.Len(t, got, tt.wantItems)
			assert.Equal(t, tt.wantRequests, f.requests)
		})
	}
}

func TestPaginateError(t *testing.T) {
	errBoom := errors.New("boom")

	_, err := keycloak.Paginate(context.Background(), 10, func(context.Context, int, int) ([]int, error) {
		return nil, errBoom
	})
	require.ErrorIs(t, err, errBoom)
}

func TestPaginateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakePager{items: seq(5)}

	_, err := keycloak.Paginate(ctx, 2, f.fetch)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.requests)
}

func TestPageURL(t *testing.T) {
	got := keycloak.PageURL("http://kc/policy", url.Values{"scope": {"okdata:dataset:read"}}, 300, 300)
	assert.Equal(t, "http://kc/policy?first=300&max=300&scope=okdata%3Adataset%3Aread", got)
}
