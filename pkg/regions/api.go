// Package regions browses the regions of The Data Garden: the world, its
// continents and countries, their statistics and the regional data models
// available for each of them.
//
// API and Region memoize what they fetch. They are not safe for concurrent
// use; ClearCache drops the memoized state.
package regions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/datagarden-client/pkg/client"
	"github.com/Sternrassler/datagarden-client/pkg/pagination"
	"github.com/Sternrassler/datagarden-client/pkg/regionaldata"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoints relative to the API base URL.
const (
	WorldPath      = "api/world/"
	ContinentsPath = "api/continents/"
	CountriesPath  = "api/countries/"

	continentPrefix = "api/continent/"
	countryPrefix   = "api/country/"
)

// ErrRegionNotFound is returned when a continent or country name is unknown.
var ErrRegionNotFound = errors.New("region not found")

// Fetcher is the transport used for region endpoints. *client.Client
// implements it.
type Fetcher interface {
	regionaldata.Fetcher
	GetJSON(ctx context.Context, urlExtension string, params url.Values, out any) error
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithPagination bounds the list endpoint walks.
func WithPagination(cfg pagination.Config) Option {
	return func(a *API) {
		a.pageCfg = cfg
	}
}

// WithCollectionOptions are passed to every regional data collection.
func WithCollectionOptions(opts ...regionaldata.Option) Option {
	return func(a *API) {
		a.collOpts = append(a.collOpts, opts...)
	}
}

// API lists regions and hands out Region handles.
type API struct {
	fetcher  Fetcher
	logger   zerolog.Logger
	pageCfg  pagination.Config
	collOpts []regionaldata.Option

	continents map[string]*Region
	countries  map[string]*Region
}

// New creates a region API on top of fetcher.
func New(fetcher Fetcher, opts ...Option) *API {
	a := &API{
		fetcher: fetcher,
		logger:  log.With().Str("component", "regions").Logger(),
		pageCfg: pagination.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// World returns the world summary.
func (a *API) World(ctx context.Context) (map[string]any, error) {
	var world map[string]any
	if err := a.fetcher.GetJSON(ctx, WorldPath, nil, &world); err != nil {
		return nil, fmt.Errorf("get world: %w", err)
	}
	return world, nil
}

// Continents returns all continents keyed by MethodName.
func (a *API) Continents(ctx context.Context) (map[string]*Region, error) {
	if a.continents == nil {
		regions, err := a.list(ctx, ContinentsPath, KindContinent)
		if err != nil {
			return nil, err
		}
		a.continents = regions
	}
	return a.continents, nil
}

// Countries returns all countries keyed by MethodName.
func (a *API) Countries(ctx context.Context) (map[string]*Region, error) {
	if a.countries == nil {
		regions, err := a.list(ctx, CountriesPath, KindCountry)
		if err != nil {
			return nil, err
		}
		a.countries = regions
	}
	return a.countries, nil
}

// Continent looks up a continent by name, e.g. "North America" or
// "north_america".
func (a *API) Continent(ctx context.Context, name string) (*Region, error) {
	continents, err := a.Continents(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(continents, KindContinent, name)
}

// Country looks up a country by name, e.g. "United Kingdom" or
// "united_kingdom".
func (a *API) Country(ctx context.Context, name string) (*Region, error) {
	countries, err := a.Countries(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(countries, KindCountry, name)
}

// ClearCache forgets the listed regions.
func (a *API) ClearCache() {
	a.continents = nil
	a.countries = nil
}

func lookup(regions map[string]*Region, kind Kind, name string) (*Region, error) {
	r, ok := regions[MethodName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrRegionNotFound, kind, name)
	}
	return r, nil
}

type listResponse struct {
	Count   int              `json:"count"`
	Next    *string          `json:"next"`
	Results []map[string]any `json:"results"`
}

// list walks a list endpoint. Later pages are addressed by the absolute URL
// in the previous page's next field.
func (a *API) list(ctx context.Context, path string, kind Kind) (map[string]*Region, error) {
	fetch := func(ctx context.Context, cursor string) (*pagination.Page[map[string]any], error) {
		target := path
		if cursor != "" {
			target = cursor
		}
		var resp listResponse
		err := a.fetcher.GetJSON(ctx, target, nil, &resp)
		if errors.Is(err, client.ErrNoContent) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		page := &pagination.Page[map[string]any]{Results: resp.Results}
		if resp.Next != nil {
			page.Next = *resp.Next
		}
		return page, nil
	}

	page, err := pagination.Walk(ctx, fetch, a.pageCfg)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}

	regions := make(map[string]*Region)
	if page == nil {
		return regions, nil
	}
	for _, summary := range page.Results {
		name, _ := summary["name"].(string)
		if name == "" {
			a.logger.Warn().Str("kind", string(kind)).Msg("Skipping region without name")
			continue
		}
		regions[MethodName(name)] = newRegion(a.fetcher, kind, name, summary, a.collOpts)
	}

	a.logger.Debug().
		Str("kind", string(kind)).
		Int("regions", len(regions)).
		Msg("Listed regions")
	return regions, nil
}

// Names returns the keys of regions in sorted order.
func Names(regions map[string]*Region) []string {
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MethodName normalises a region name to its lookup key: lower case with
// spaces replaced by underscores.
func MethodName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// URLExtension builds the endpoint of a named region, e.g.
// "api/country/united-kingdom/".
func URLExtension(kind Kind, name string) string {
	prefix := countryPrefix
	if kind == KindContinent {
		prefix = continentPrefix
	}
	return prefix + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-") + "/"
}
