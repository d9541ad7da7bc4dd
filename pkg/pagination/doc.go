// Package pagination walks cursor-paginated Data Garden responses.
//
// The Data Garden API splits large result sets over pages. Each page carries a
// results list and, while more pages remain, an opaque cursor naming the next
// page. This package follows those cursors sequentially and merges the
// results into one logical page.
//
// Example usage:
//
//	page, err := pagination.Walk(ctx, func(ctx context.Context, cursor string) (*pagination.Page[Item], error) {
//		return fetchItems(ctx, cursor)
//	}, pagination.DefaultConfig())
//
// The walker:
//   - Fetches the first page with an empty cursor
//   - Follows Next cursors until a page reports none
//   - Appends results in arrival order (never reorders)
//   - Returns nil when the first fetch yields no page at all
//
// Pages are fetched one at a time; there is no prefetching, caching or retry.
package pagination
