package regions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/datagarden-client/pkg/client"
	"github.com/Sternrassler/datagarden-client/pkg/regionaldata"
)

// ErrModelNotAvailable is returned by Region.Model for models the region has
// no data for.
var ErrModelNotAvailable = errors.New("model not available")

// Kind is the level of a region.
type Kind string

// Region kinds.
const (
	KindContinent Kind = "continent"
	KindCountry   Kind = "country"
)

// statisticsKey holds the statistics in a region info response.
const statisticsKey = "statistics"

func (k Kind) availableModelsKey() string {
	if k == KindContinent {
		return "available_data_on_continent_level"
	}
	return "available_data_on_country_level"
}

// Region is a continent or country.
type Region struct {
	fetcher  Fetcher
	kind     Kind
	name     string
	url      string
	summary  map[string]any
	collOpts []regionaldata.Option

	info   map[string]any
	models map[string]*regionaldata.Collection
}

func newRegion(fetcher Fetcher, kind Kind, name string, summary map[string]any, collOpts []regionaldata.Option) *Region {
	return &Region{
		fetcher:  fetcher,
		kind:     kind,
		name:     name,
		url:      URLExtension(kind, name),
		summary:  summary,
		collOpts: collOpts,
		models:   make(map[string]*regionaldata.Collection),
	}
}

// NewRegion returns a handle for a region known by name, without listing.
func NewRegion(fetcher Fetcher, kind Kind, name string, collOpts ...regionaldata.Option) *Region {
	return newRegion(fetcher, kind, name, map[string]any{"name": name}, collOpts)
}

// Name returns the region name as listed.
func (r *Region) Name() string { return r.name }

// Kind returns the region kind.
func (r *Region) Kind() Kind { return r.kind }

// URL returns the region endpoint relative to the API base URL.
func (r *Region) URL() string { return r.url }

// Summary returns the list entry the region was created from.
func (r *Region) Summary() map[string]any { return r.summary }

// Info returns the region details including statistics. A successful
// response is memoized.
func (r *Region) Info(ctx context.Context) (map[string]any, error) {
	if r.info != nil {
		return r.info, nil
	}

	var info map[string]any
	params := url.Values{"include_statistics": []string{"true"}}
	err := r.fetcher.GetJSON(ctx, r.url, params, &info)
	if errors.Is(err, client.ErrNoContent) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.kind, r.name, err)
	}
	if info == nil {
		info = map[string]any{}
	}
	r.info = info
	return r.info, nil
}

// Statistics returns the statistics section of Info.
func (r *Region) Statistics(ctx context.Context) (map[string]any, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return nil, err
	}
	stats, _ := info[statisticsKey].(map[string]any)
	if stats == nil {
		stats = map[string]any{}
	}
	return stats, nil
}

// AvailableModels returns the names of the data models available at this
// region's level, sorted.
func (r *Region) AvailableModels(ctx context.Context) ([]string, error) {
	stats, err := r.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	switch available := stats[r.kind.availableModelsKey()].(type) {
	case map[string]any:
		for name := range available {
			names = append(names, name)
		}
	case []any:
		for _, v := range available {
			if name, ok := v.(string); ok {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Model returns the regional data collection of the named model. The same
// collection is returned on every call until ClearCache.
func (r *Region) Model(ctx context.Context, name string) (*regionaldata.Collection, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if coll, ok := r.models[key]; ok {
		return coll, nil
	}

	available, err := r.AvailableModels(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, m := range available {
		if strings.ToLower(m) == key {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q for %s %s", ErrModelNotAvailable, name, r.kind, r.name)
	}

	coll := regionaldata.NewCollection(r.fetcher, r.url, key, r.collOpts...)
	r.models[key] = coll
	return coll, nil
}

// ClearCache forgets the region info and all model collections.
func (r *Region) ClearCache() {
	r.info = nil
	r.models = make(map[string]*regionaldata.Collection)
}

func (r *Region) String() string {
	return fmt.Sprintf("%s %s", r.kind, r.name)
}
