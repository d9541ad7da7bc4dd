package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// ErrTooManyPages is returned when a walk exceeds Config.MaxPages.
var ErrTooManyPages = errors.New("pagination: too many pages")

var pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "datagarden_pages_fetched_total",
	Help: "Total number of paginated response pages fetched",
})

// Config holds walker configuration.
type Config struct {
	// MaxPages bounds the number of pages fetched in one walk.
	// Zero means unbounded.
	MaxPages int
}

// DefaultConfig returns the default walker configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages: 0,
	}
}

// Page is one page of a paginated response, or the merged result of a walk.
type Page[T any] struct {
	// Results holds the records carried by the page.
	Results []T

	// Next is the cursor of the following page. Empty on the last page.
	Next string
}

// HasNext reports whether more pages remain after p.
func (p *Page[T]) HasNext() bool {
	return p != nil && p.Next != ""
}

// FetchFunc fetches the page identified by cursor. The empty cursor names the
// first page. A nil page with a nil error means the service returned nothing.
type FetchFunc[T any] func(ctx context.Context, cursor string) (*Page[T], error)

// Walk fetches the first page and keeps following Next cursors, appending each
// page's results onto the accumulated ones. The returned page has the results
// of all pages in arrival order and the Next cursor of the newest page.
//
// If the first fetch yields no page, Walk returns nil without retrying. A
// missing later page ends the walk with what was gathered so far.
func Walk[T any](ctx context.Context, fetch FetchFunc[T], cfg Config) (*Page[T], error) {
	start := time.Now()

	first, err := fetch(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetch page 1: %w", err)
	}
	if first == nil {
		log.Debug().Msg("First page empty, nothing to walk")
		return nil, nil
	}
	pagesFetchedTotal.Inc()

	merged := &Page[T]{
		Results: append([]T(nil), first.Results...),
		Next:    first.Next,
	}

	pages := 1
	for merged.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cfg.MaxPages > 0 && pages >= cfg.MaxPages {
			return nil, fmt.Errorf("%w: limit %d reached at cursor %q", ErrTooManyPages, cfg.MaxPages, merged.Next)
		}

		cursor := merged.Next
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d (cursor %q): %w", pages+1, cursor, err)
		}
		pages++

		if page == nil {
			log.Debug().
				Str("cursor", cursor).
				Int("pages", pages).
				Msg("Page missing, ending walk")
			merged.Next = ""
			break
		}
		pagesFetchedTotal.Inc()

		merged.Results = append(merged.Results, page.Results...)
		merged.Next = page.Next

		log.Debug().
			Str("cursor", cursor).
			Int("page_results", len(page.Results)).
			Int("total_results", len(merged.Results)).
			Msg("Fetched page")
	}

	log.Debug().
		Int("pages", pages).
		Int("results", len(merged.Results)).
		Dur("duration", time.Since(start)).
		Msg("Walk complete")

	return merged, nil
}
