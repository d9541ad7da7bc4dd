package regionaldata

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PeriodType is the granularity of a data period.
type PeriodType string

// Period types accepted by the regional data endpoint.
const (
	PeriodYear    PeriodType = "Y"
	PeriodQuarter PeriodType = "Q"
	PeriodMonth   PeriodType = "M"
	PeriodWeek    PeriodType = "W"
	PeriodDay     PeriodType = "D"
	PeriodHour    PeriodType = "H"
)

// ErrInvalidPeriodType is returned by ValidatePeriodType.
var ErrInvalidPeriodType = errors.New("invalid period type")

// ValidatePeriodType checks s against the known period types.
func ValidatePeriodType(s string) (PeriodType, error) {
	switch pt := PeriodType(strings.ToUpper(s)); pt {
	case PeriodYear, PeriodQuarter, PeriodMonth, PeriodWeek, PeriodDay, PeriodHour:
		return pt, nil
	default:
		return "", fmt.Errorf("%w: %q (want one of Y, Q, M, W, D, H)", ErrInvalidPeriodType, s)
	}
}

// ErrReservedParam is returned for a query whose Params set a key the
// collection owns.
var ErrReservedParam = errors.New("reserved query parameter")

// reservedParams are set by the collection on every page request.
var reservedParams = []string{"model", "pagination"}

// Params are the filters of a regional data query. They are sent verbatim
// in the request payload next to the model name. The "model" and
// "pagination" keys belong to the collection; a query setting either fails
// with ErrReservedParam.
type Params map[string]any

// NewParams returns empty query parameters.
func NewParams() Params {
	return Params{}
}

// WithSource restricts the query to the named sources.
func (p Params) WithSource(sources ...string) Params {
	p["source"] = sources
	return p
}

// WithPeriodType sets the period granularity.
func (p Params) WithPeriodType(pt PeriodType) Params {
	p["period_type"] = string(pt)
	return p
}

// WithPeriodRange bounds the period. A zero time leaves that side open.
func (p Params) WithPeriodRange(from, to time.Time) Params {
	if !from.IsZero() {
		p["period_from"] = from.UTC().Format(time.RFC3339)
	}
	if !to.IsZero() {
		p["period_to"] = to.UTC().Format(time.RFC3339)
	}
	return p
}

// WithRegionType restricts descendant regions to one region type.
func (p Params) WithRegionType(regionType string) Params {
	p["region_type"] = regionType
	return p
}

// WithDescendantLevel includes descendant regions down to level.
func (p Params) WithDescendantLevel(level int) Params {
	p["descendant_level"] = level
	return p
}

// Hash returns a deterministic fingerprint of the parameters: sorted
// key:value pairs joined by ','. Values are JSON encoded.
func (p Params) Hash() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(p[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%v", p[k]))
		}
		pairs = append(pairs, k+":"+string(v))
	}
	return strings.Join(pairs, ",")
}

// validate rejects reserved keys.
func (p Params) validate() error {
	for _, key := range reservedParams {
		if _, ok := p[key]; ok {
			return fmt.Errorf("%w: %q", ErrReservedParam, key)
		}
	}
	return nil
}

// payload builds the request body for one page. The first page is requested
// without a pagination entry.
func (p Params) payload(model, pageCursor string) map[string]any {
	body := make(map[string]any, len(p)+2)
	for k, v := range p {
		body[k] = v
	}
	body["model"] = model
	if pageCursor != "" {
		body["pagination"] = map[string]any{"page": pageCursor}
	}
	return body
}
