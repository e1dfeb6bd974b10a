package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Page is one page of a list endpoint. Endpoints answer either
// {items, totalPages} or {items, hasMore}; TotalsKnown tells them apart.
type Page[T any] struct {
	Items       []T
	TotalPages  int
	TotalsKnown bool
	HasMore     bool
}

type pagePayload[T any] struct {
	Items      []T  `json:"items"`
	TotalPages *int `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// Resource is a typed CRUD endpoint such as /items or /pools.
type Resource[T any] struct {
	client *Client
	path   string
}

// NewResource binds path on client.
func NewResource[T any](client *Client, path string) *Resource[T] {
	return &Resource[T]{client: client, path: "/" + strings.Trim(path, "/")}
}

// Path returns the collection path.
func (r *Resource[T]) Path() string { return r.path }

// List fetches one page using the pageIndex/pageSize query parameters.
// Extra filters are merged into the query.
func (r *Resource[T]) List(ctx context.Context, pageIndex, pageSize int, filters url.Values) (Page[T], error) {
	query := url.Values{}
	for k, v := range filters {
		query[k] = append([]string(nil), v...)
	}
	query.Set("pageIndex", strconv.Itoa(pageIndex))
	query.Set("pageSize", strconv.Itoa(pageSize))

	var raw json.RawMessage
	if err := r.client.Get(ctx, r.path, query, &raw); err != nil {
		return Page[T]{}, err
	}
	var payload pagePayload[T]
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			// some endpoints answer with a bare array
			var items []T
			if errArr := json.Unmarshal(raw, &items); errArr != nil {
				return Page[T]{}, fmt.Errorf("api: decode %s page: %w", r.path, err)
			}
			payload.Items = items
		}
	}
	page := Page[T]{Items: payload.Items, HasMore: payload.HasMore}
	if payload.TotalPages != nil {
		page.TotalPages = *payload.TotalPages
		page.TotalsKnown = true
		page.HasMore = pageIndex+1 < page.TotalPages
	}
	return page, nil
}

// Get fetches one record.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.Get(ctx, r.item(id), nil, &out)
	return out, err
}

// Create posts payload to the collection.
func (r *Resource[T]) Create(ctx context.Context, payload any) (T, error) {
	var out T
	err := r.client.Post(ctx, r.path, payload, &out)
	return out, err
}

// Update replaces the record id with payload.
func (r *Resource[T]) Update(ctx context.Context, id string, payload any) (T, error) {
	var out T
	err := r.client.Put(ctx, r.item(id), payload, &out)
	return out, err
}

// Delete removes the record id.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.Delete(ctx, r.item(id), nil)
}

func (r *Resource[T]) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}
