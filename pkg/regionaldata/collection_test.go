package regionaldata_test

//go:generate mockgen -source=collection.go -destination=mocks/mocks.go -package=mocks Fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Sternrassler/datagarden-client/internal/testutil"
	"github.com/Sternrassler/datagarden-client/pkg/client"
	"github.com/Sternrassler/datagarden-client/pkg/models"
	"github.com/Sternrassler/datagarden-client/pkg/pagination"
	"github.com/Sternrassler/datagarden-client/pkg/regionaldata"
	"github.com/Sternrassler/datagarden-client/pkg/regionaldata/mocks"
	"github.com/Sternrassler/datagarden-client/pkg/tabular"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const (
	regionURL = "api/country/netherlands/"
	dataURL   = regionURL + "regional_data/"
)

type CollectionSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	fetcher *mocks.MockFetcher
	coll    *regionaldata.Collection
	ctx     context.Context
}

func (s *CollectionSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.coll = regionaldata.NewCollection(s.fetcher, regionURL, "population")
	s.ctx = context.Background()
}

func TestCollectionSuite(t *testing.T) {
	suite.Run(t, new(CollectionSuite))
}

func population(source, period string, total float64) map[string]any {
	return testutil.DataObject("POPULATION", source, period, "Y", map[string]any{"total": total})
}

func (s *CollectionSuite) page(next any, regions ...map[string]any) func(context.Context, string, any, any) error {
	body, err := json.Marshal(map[string]any{
		"data_by_region": regions,
		"pagination":     map[string]any{"next_page": next},
	})
	s.Require().NoError(err)
	return func(_ context.Context, _ string, _ any, out any) error {
		return json.Unmarshal(body, out)
	}
}

func cursorOf(payload any) any {
	p, _ := payload.(map[string]any)["pagination"].(map[string]any)
	return p["page"]
}

// TestQueryWalksPages verifies every page is fetched and merged.
func (s *CollectionSuite) TestQueryWalksPages() {
	var cursors []any
	record := func(_ context.Context, _ string, payload any, _ any) error {
		cursors = append(cursors, cursorOf(payload))
		s.Equal("population", payload.(map[string]any)["model"])
		s.Equal("Y", payload.(map[string]any)["period_type"])
		return nil
	}

	first := s.page("2", testutil.RegionData("Netherlands", "NL",
		population("United Nations", "2021", 17_700_000),
		population("United Nations", "2022", 17_811_291),
	))
	second := s.page(nil, testutil.RegionData("Belgium", "BE",
		population("United Nations", "2022", 11_680_000),
	))

	gomock.InOrder(
		s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, u string, p, out any) error {
				s.Require().NoError(record(ctx, u, p, out))
				return first(ctx, u, p, out)
			}),
		s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, u string, p, out any) error {
				s.Require().NoError(record(ctx, u, p, out))
				return second(ctx, u, p, out)
			}),
	)

	s.Equal(regionaldata.StateUninitialized, s.coll.State())
	s.Equal("population", s.coll.ModelName())
	s.Require().NoError(s.coll.Query(s.ctx, regionaldata.NewParams().WithPeriodType(regionaldata.PeriodYear)))

	s.Equal([]any{nil, "2"}, cursors)
	s.Equal(3, s.coll.Len())
	s.Equal(regionaldata.StateIdle, s.coll.State())
	s.Equal(models.TypePopulation, s.coll.ModelName())

	records := s.coll.Records()
	s.Equal("Netherlands", *records[0].Name)
	s.Equal("Belgium", *records[2].Name)
	s.IsType(&models.Population{}, records[2].Model)
	s.Equal(11_680_000.0, *records[2].Model.(*models.Population).Total)
}

// TestQueryDeduplicates verifies identical parameters are fetched once.
func (s *CollectionSuite) TestQueryDeduplicates() {
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
			population("United Nations", "2022", 17_811_291)))).
		Times(2)

	params := regionaldata.NewParams().WithSource("United Nations")
	s.Require().NoError(s.coll.Query(s.ctx, params))
	s.Require().NoError(s.coll.Query(s.ctx, regionaldata.NewParams().WithSource("United Nations")))

	s.Require().NoError(s.coll.Query(s.ctx, regionaldata.NewParams().WithSource("Eurostat")))
	s.Require().NoError(s.coll.Query(s.ctx, regionaldata.NewParams().WithSource("Eurostat")))

	s.Equal(1, s.coll.Len())
}

// TestQueryMerges verifies a new query adds to and replaces stored records.
func (s *CollectionSuite) TestQueryMerges() {
	gomock.InOrder(
		s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
			DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
				population("United Nations", "2021", 17_700_000),
				population("United Nations", "2022", 1)))),
		s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
			DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
				population("United Nations", "2022", 17_811_291)))),
	)

	s.Require().NoError(s.coll.Query(s.ctx, regionaldata.Params{"period_from": "2021"}))
	s.Require().NoError(s.coll.Query(s.ctx, regionaldata.Params{"period_from": "2022"}))

	records := s.coll.Records()
	s.Require().Len(records, 2)
	s.Equal("2022", *records[1].Period)
	s.Equal(17_811_291.0, *records[1].Model.(*models.Population).Total)
}

// TestUnknownModelAbortsBatch verifies one unresolvable object rejects the query.
func (s *CollectionSuite) TestUnknownModelAbortsBatch() {
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
			population("United Nations", "2022", 17_811_291),
			testutil.DataObject("bogus", "United Nations", "2022", "Y", map[string]any{})))).
		Times(2)

	err := s.coll.Query(s.ctx, nil)
	s.Require().ErrorIs(err, models.ErrUnknownModelType)

	var resolveErr *models.ResolveError
	s.Require().True(errors.As(err, &resolveErr))
	s.Equal("bogus", resolveErr.ModelType)

	s.Equal(0, s.coll.Len())
	s.Equal(regionaldata.StateUninitialized, s.coll.State())

	// The failed query is not remembered.
	s.Error(s.coll.Query(s.ctx, nil))
}

// TestUndeclaredFieldsAccepted verifies payload fields the model does not
// declare leave the batch intact.
func (s *CollectionSuite) TestUndeclaredFieldsAccepted() {
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
			population("United Nations", "2021", 17_700_000),
			testutil.DataObject("POPULATION", "United Nations", "2022", "Y",
				map[string]any{"total": 17_811_291, "urban_share": 0.9}))))

	s.Require().NoError(s.coll.Query(s.ctx, nil))

	records := s.coll.Records()
	s.Require().Len(records, 2)
	s.Equal(17_811_291.0, *records[1].Model.(*models.Population).Total)
}

// TestReservedParams verifies params cannot override the model or cursor.
func (s *CollectionSuite) TestReservedParams() {
	for _, key := range []string{"model", "pagination"} {
		err := s.coll.Query(s.ctx, regionaldata.Params{key: "economics"})
		s.ErrorIs(err, regionaldata.ErrReservedParam, key)
	}
	s.Equal(regionaldata.StateUninitialized, s.coll.State())
}

// TestInvalidPayloadAbortsBatch verifies validation failures propagate.
func (s *CollectionSuite) TestInvalidPayloadAbortsBatch() {
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
			population("United Nations", "2022", -1))))

	err := s.coll.Query(s.ctx, nil)
	s.ErrorIs(err, models.ErrInvalidModelPayload)
	s.Equal(0, s.coll.Len())
}

// TestTransportError verifies transport failures propagate unchanged.
func (s *CollectionSuite) TestTransportError() {
	apiErr := &client.APIError{StatusCode: http.StatusInternalServerError, ErrorClass: client.ErrorClassServer}
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).Return(apiErr)

	err := s.coll.Query(s.ctx, nil)

	var got *client.APIError
	s.Require().True(errors.As(err, &got))
	s.Same(apiErr, got)
	s.Equal(regionaldata.StateUninitialized, s.coll.State())
}

// TestNoContent verifies an empty response completes the query without records.
func (s *CollectionSuite) TestNoContent() {
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		Return(client.ErrNoContent).
		Times(1)

	s.Require().NoError(s.coll.Query(s.ctx, nil))
	s.Require().NoError(s.coll.Query(s.ctx, nil))
	s.Equal(0, s.coll.Len())
	s.Equal(regionaldata.StateIdle, s.coll.State())
}

// TestMaxPages verifies the page limit is enforced.
func (s *CollectionSuite) TestMaxPages() {
	coll := regionaldata.NewCollection(s.fetcher, regionURL, "population",
		regionaldata.WithPagination(pagination.Config{MaxPages: 1}))

	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page("2", testutil.RegionData("Netherlands", "NL")))

	s.ErrorIs(coll.Query(s.ctx, nil), pagination.ErrTooManyPages)
	s.Equal(0, coll.Len())
}

// TestCustomRegistry verifies additional model variants can be resolved.
func (s *CollectionSuite) TestCustomRegistry() {
	registry := models.NewRegistry()
	registry.Register("population", func() models.Model { return &models.Population{} })
	coll := regionaldata.NewCollection(s.fetcher, regionURL, "population", regionaldata.WithRegistry(registry))

	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page(nil, testutil.RegionData("Netherlands", "NL",
			testutil.DataObject("WEATHER", "KNMI", "2022", "Y", map[string]any{}))))

	s.ErrorIs(coll.Query(s.ctx, nil), models.ErrUnknownModelType)
}

// TestTables verifies selective and full projection of stored records.
func (s *CollectionSuite) TestTables() {
	s.fetcher.EXPECT().PostJSON(gomock.Any(), dataURL, gomock.Any(), gomock.Any()).
		DoAndReturn(s.page(nil,
			testutil.RegionData("Netherlands", "NL",
				testutil.DataObject("POPULATION", "United Nations", "2022", "Y", map[string]any{
					"total":  17_811_291,
					"change": map[string]any{"births": 167_504},
				})),
			testutil.RegionData("Belgium", "BE", population("United Nations", "2022", 11_680_000)),
		))
	s.Require().NoError(s.coll.Query(s.ctx, nil))

	s.Run("selective", func() {
		table, err := s.coll.Table(tabular.FieldSpec{
			"total":  "total",
			"births": "change.births",
		})
		s.Require().NoError(err)
		s.Equal(2, table.Len())

		columns := table.Columns()
		s.Equal(regionaldata.BaselineColumns, columns[:len(regionaldata.BaselineColumns)])
		s.Equal([]string{"births", "total"}, columns[len(regionaldata.BaselineColumns):])

		v, ok := table.Value(0, "births")
		s.True(ok)
		s.Equal(json.Number("167504"), v)

		_, ok = table.Value(1, "births")
		s.False(ok)
	})

	s.Run("full", func() {
		table, err := s.coll.FullTable()
		s.Require().NoError(err)
		s.Contains(table.Columns(), "change.births")
		s.Contains(table.Columns(), "density")

		// Belgium has no change object: null is kept, no sub-columns.
		v, ok := table.Value(1, "change")
		s.True(ok)
		s.Nil(v)
		_, ok = table.Value(1, "change.births")
		s.False(ok)
	})
}

func (s *CollectionSuite) TestString() {
	s.Equal("regional data: population at api/country/netherlands/ (count=0)", s.coll.String())
}

func TestState_String(t *testing.T) {
	cases := map[regionaldata.State]string{
		regionaldata.StateUninitialized: "uninitialized",
		regionaldata.StateFetching:      "fetching",
		regionaldata.StateIdle:          "idle",
		regionaldata.State(9):           "State(9)",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
