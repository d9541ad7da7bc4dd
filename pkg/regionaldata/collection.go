package regionaldata

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/datagarden-client/pkg/client"
	"github.com/Sternrassler/datagarden-client/pkg/models"
	"github.com/Sternrassler/datagarden-client/pkg/pagination"
	"github.com/Sternrassler/datagarden-client/pkg/tabular"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for regional data queries.
var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datagarden_regional_queries_total",
		Help: "Total regional data queries by result (fetched, deduplicated, error)",
	}, []string{"result"})

	recordsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datagarden_records_resolved_total",
		Help: "Total regional data records resolved by model",
	}, []string{"model"})
)

// Fetcher posts a JSON payload and decodes the JSON response into out. It
// returns client.ErrNoContent when the response carries no page.
type Fetcher interface {
	PostJSON(ctx context.Context, urlExtension string, payload any, out any) error
}

// State is the query lifecycle of a Collection.
type State int

const (
	// StateUninitialized means no query has completed yet.
	StateUninitialized State = iota
	// StateFetching means a query is walking pages.
	StateFetching
	// StateIdle means at least one query has completed.
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateFetching:
		return "fetching"
	case StateIdle:
		return "idle"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithRegistry sets the registry used to resolve data objects.
func WithRegistry(registry *models.Registry) Option {
	return func(c *Collection) {
		c.registry = registry
	}
}

// WithPagination sets the page walk limits.
func WithPagination(cfg pagination.Config) Option {
	return func(c *Collection) {
		c.pageCfg = cfg
	}
}

// Collection accumulates the records of one model for one region. Queries
// with parameters already seen are not fetched again; new parameters add
// records to the same store.
type Collection struct {
	fetcher   Fetcher
	regionURL string
	modelName string
	registry  *models.Registry
	pageCfg   pagination.Config
	logger    zerolog.Logger

	store *Store
	seen  map[string]struct{}
	state State
}

// NewCollection creates a collection for modelName at regionURL, a region
// URL extension with trailing slash such as "api/country/netherlands/".
func NewCollection(fetcher Fetcher, regionURL, modelName string, opts ...Option) *Collection {
	c := &Collection{
		fetcher:   fetcher,
		regionURL: regionURL,
		modelName: modelName,
		registry:  models.DefaultRegistry(),
		pageCfg:   pagination.DefaultConfig(),
		logger:    log.With().Str("component", "regional-data").Logger(),
		store:     NewStore(modelName),
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query fetches every page for params and merges the records into the
// collection. A query whose parameters were already fetched is a no-op.
//
// If any data object fails to resolve to a model, the whole query is
// rejected: no record is stored and the same query may be retried.
func (c *Collection) Query(ctx context.Context, params Params) error {
	if params == nil {
		params = NewParams()
	}
	if err := params.validate(); err != nil {
		return fmt.Errorf("query %s at %s: %w", c.modelName, c.regionURL, err)
	}
	hash := params.Hash()
	if _, ok := c.seen[hash]; ok {
		queriesTotal.WithLabelValues("deduplicated").Inc()
		c.logger.Debug().Str("model", c.modelName).Str("params", hash).Msg("Query already fetched")
		return nil
	}

	logger := c.logger.With().
		Str("model", c.modelName).
		Str("region", c.regionURL).
		Str("query_id", uuid.NewString()).
		Logger()

	previous := c.state
	c.state = StateFetching

	records, err := c.fetch(ctx, params, logger)
	if err == nil {
		err = c.store.UpsertAll(records)
	}
	if err != nil {
		c.state = previous
		queriesTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("Regional data query failed")
		return fmt.Errorf("query %s at %s: %w", c.modelName, c.regionURL, err)
	}

	c.seen[hash] = struct{}{}
	c.state = StateIdle
	queriesTotal.WithLabelValues("fetched").Inc()
	recordsResolved.WithLabelValues(c.store.ModelName()).Add(float64(len(records)))

	logger.Info().
		Int("records", len(records)).
		Int("stored", c.store.Len()).
		Msg("Regional data query completed")
	return nil
}

func (c *Collection) fetch(ctx context.Context, params Params, logger zerolog.Logger) ([]Record, error) {
	urlExtension := c.regionURL + "regional_data/"
	fetchPage := func(ctx context.Context, pageCursor string) (*pagination.Page[regionData], error) {
		var resp regionalDataResponse
		err := c.fetcher.PostJSON(ctx, urlExtension, params.payload(c.modelName, pageCursor), &resp)
		if errors.Is(err, client.ErrNoContent) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &pagination.Page[regionData]{Results: resp.DataByRegion, Next: resp.next()}, nil
	}

	page, err := pagination.Walk(ctx, fetchPage, c.pageCfg)
	if err != nil {
		return nil, err
	}
	if page == nil {
		logger.Debug().Msg("Regional data query returned no content")
		return nil, nil
	}
	return c.resolve(page.Results)
}

// resolve converts every data object of the batch into a Record. The first
// failure aborts the batch.
func (c *Collection) resolve(regions []regionData) ([]Record, error) {
	var records []Record
	for _, region := range regions {
		base := region.record()
		for _, obj := range region.DataObjects {
			model, err := c.registry.Resolve(obj.DataType, obj.Data)
			if err != nil {
				return nil, fmt.Errorf("region %s: %w", stringOr(region.RegionName, absentField), err)
			}
			r := base
			r.SourceName = obj.SourceName
			r.Period = obj.Period
			r.PeriodType = obj.PeriodType
			r.DataModelName = obj.DataType
			r.Model = model
			records = append(records, r)
		}
	}
	return records, nil
}

// Records returns the stored records.
func (c *Collection) Records() []Record {
	return c.store.All()
}

// Len returns the number of stored records.
func (c *Collection) Len() int {
	return c.store.Len()
}

// ModelName returns the model the collection holds: the requested name until
// the first records arrive, then the service's canonical model name.
func (c *Collection) ModelName() string {
	return c.store.ModelName()
}

// State returns the query lifecycle state.
func (c *Collection) State() State {
	return c.state
}

// Table projects the records onto the baseline columns plus the columns
// named in spec.
func (c *Collection) Table(spec tabular.FieldSpec) (*tabular.Table, error) {
	rows, err := tabular.Project(c.store.All(), spec)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", c.modelName, err)
	}
	return tabular.NewTable(rows, BaselineColumns...), nil
}

// FullTable projects the records onto the baseline columns plus every
// flattened model field.
func (c *Collection) FullTable() (*tabular.Table, error) {
	rows, err := tabular.ProjectFull(c.store.All())
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", c.modelName, err)
	}
	return tabular.NewTable(rows, BaselineColumns...), nil
}

func (c *Collection) String() string {
	return fmt.Sprintf("regional data: %s at %s (count=%d)", c.ModelName(), c.regionURL, c.store.Len())
}
