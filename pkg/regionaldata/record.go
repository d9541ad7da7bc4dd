// Package regionaldata holds typed regional data records for one region and
// model, fetched page by page from the regional data endpoint.
//
// A Collection is not safe for concurrent use. Callers that share one across
// goroutines must serialise Query and the accessors themselves.
package regionaldata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/datagarden-client/pkg/models"
)

// absentField stands in for a missing identity field.
const absentField = "<none>"

// BaselineColumns are the record metadata columns, in table order.
var BaselineColumns = []string{
	"name",
	"region_type",
	"un_region_code",
	"iso_cc_2",
	"local_region_code",
	"local_region_code_type",
	"parent_region_code",
	"parent_region_code_type",
	"parent_region_type",
	"region_level",
	"source_name",
	"period",
	"period_type",
	"data_model_name",
}

// Record is one typed data object for one region, source and period.
type Record struct {
	Name                 *string `json:"name"`
	RegionType           *string `json:"region_type"`
	UNRegionCode         *string `json:"un_region_code"`
	ISOCC2               *string `json:"iso_cc_2"`
	LocalRegionCode      *string `json:"local_region_code"`
	LocalRegionCodeType  *string `json:"local_region_code_type"`
	ParentRegionCode     *string `json:"parent_region_code"`
	ParentRegionCodeType *string `json:"parent_region_code_type"`
	ParentRegionType     *string `json:"parent_region_type"`
	RegionLevel          int     `json:"region_level"`

	SourceName *string `json:"source_name"`
	Period     *string `json:"period"`
	PeriodType *string `json:"period_type"`

	DataModelName string       `json:"data_model_name"`
	Model         models.Model `json:"-"`
}

// IdentityKey identifies the fact a record describes. Records with equal keys
// replace each other in a Store. Fields appear sorted by name as name=value
// pairs joined by ':'. Values are Go-quoted so delimiters inside them cannot
// shift field boundaries; missing values render as the bare "<none>".
func (r Record) IdentityKey() string {
	level := strconv.Itoa(r.RegionLevel)
	fields := []struct {
		name  string
		value *string
	}{
		{"iso_cc_2", r.ISOCC2},
		{"local_region_code", r.LocalRegionCode},
		{"local_region_code_type", r.LocalRegionCodeType},
		{"period", r.Period},
		{"period_type", r.PeriodType},
		{"region_level", &level},
		{"region_type", r.RegionType},
		{"source_name", r.SourceName},
		{"un_region_code", r.UNRegionCode},
	}

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		if f.value == nil {
			b.WriteString(absentField)
		} else {
			b.WriteString(strconv.Quote(*f.value))
		}
	}
	return b.String()
}

// Baseline returns the metadata columns of the record. Missing values are nil.
func (r Record) Baseline() map[string]any {
	return map[string]any{
		"name":                    deref(r.Name),
		"region_type":             deref(r.RegionType),
		"un_region_code":          deref(r.UNRegionCode),
		"iso_cc_2":                deref(r.ISOCC2),
		"local_region_code":       deref(r.LocalRegionCode),
		"local_region_code_type":  deref(r.LocalRegionCodeType),
		"parent_region_code":      deref(r.ParentRegionCode),
		"parent_region_code_type": deref(r.ParentRegionCodeType),
		"parent_region_type":      deref(r.ParentRegionType),
		"region_level":            r.RegionLevel,
		"source_name":             deref(r.SourceName),
		"period":                  deref(r.Period),
		"period_type":             deref(r.PeriodType),
		"data_model_name":         r.DataModelName,
	}
}

// ModelValue returns the typed model.
func (r Record) ModelValue() any {
	return r.Model
}

func (r Record) String() string {
	return fmt.Sprintf("regional data record: %s (%s for %s, %s)",
		stringOr(r.Name, absentField), r.DataModelName,
		stringOr(r.Period, absentField), stringOr(r.PeriodType, absentField))
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// regionalDataResponse is one page of the regional data endpoint.
type regionalDataResponse struct {
	DataByRegion []regionData `json:"data_by_region"`
	Pagination   *struct {
		NextPage cursor `json:"next_page"`
	} `json:"pagination"`
}

func (r *regionalDataResponse) next() string {
	if r.Pagination == nil {
		return ""
	}
	return string(r.Pagination.NextPage)
}

type regionData struct {
	RegionName           *string      `json:"region_name"`
	RegionType           *string      `json:"region_type"`
	UNRegionCode         *string      `json:"un_region_code"`
	ISOCC2               *string      `json:"iso_cc_2"`
	LocalRegionCode      *string      `json:"local_region_code"`
	LocalRegionCodeType  *string      `json:"local_region_code_type"`
	ParentRegionCode     *string      `json:"parent_region_code"`
	ParentRegionCodeType *string      `json:"parent_region_code_type"`
	ParentRegionType     *string      `json:"parent_region_type"`
	RegionLevel          *int         `json:"region_level"`
	DataObjects          []dataObject `json:"data_objects_for_region"`
}

type dataObject struct {
	DataType   string          `json:"data_type"`
	SourceName *string         `json:"source_name"`
	Period     *string         `json:"period"`
	PeriodType *string         `json:"period_type"`
	Data       json.RawMessage `json:"data"`
}

// record builds the region part of a Record.
func (d regionData) record() Record {
	r := Record{
		Name:                 d.RegionName,
		RegionType:           d.RegionType,
		UNRegionCode:         d.UNRegionCode,
		ISOCC2:               d.ISOCC2,
		LocalRegionCode:      d.LocalRegionCode,
		LocalRegionCodeType:  d.LocalRegionCodeType,
		ParentRegionCode:     d.ParentRegionCode,
		ParentRegionCodeType: d.ParentRegionCodeType,
		ParentRegionType:     d.ParentRegionType,
	}
	if d.RegionLevel != nil {
		r.RegionLevel = *d.RegionLevel
	}
	return r
}

// cursor is a next_page value. The service sends it as a string or a number;
// null and the empty string both mean there is no next page.
type cursor string

func (c *cursor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = cursor(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = cursor(n.String())
	return nil
}
