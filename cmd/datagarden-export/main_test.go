package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/datagarden-client/internal/testutil"
	"github.com/Sternrassler/datagarden-client/pkg/client"
	"github.com/Sternrassler/datagarden-client/pkg/tabular"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const regionalDataPath = "/api/country/netherlands/regional_data/"

func setupTestRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Redis container unavailable: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		redisC.Terminate(ctx)
	}

	return "redis://" + host + ":" + port.Port() + "/0", cleanup
}

// setupMockAPI serves one country with two population records.
func setupMockAPI(t *testing.T) *testutil.MockAPI {
	t.Helper()

	mock := testutil.NewMockAPI()
	t.Cleanup(mock.Close)

	mock.SetListPages("/api/countries/", []map[string]any{{"name": "Netherlands"}, {"name": "Belgium"}})
	mock.SetJSON("/api/country/netherlands/", http.StatusOK, map[string]any{
		"name": "Netherlands",
		"statistics": map[string]any{
			"available_data_on_country_level": map[string]any{"Population": map[string]any{}},
		},
	})
	mock.SetRegionalDataPages(regionalDataPath,
		[]map[string]any{testutil.RegionData("Netherlands", "NL",
			testutil.DataObject("POPULATION", "United Nations", "2021", "Y", map[string]any{"total": 17_700_000}))},
		[]map[string]any{testutil.RegionData("Netherlands", "NL",
			testutil.DataObject("POPULATION", "United Nations", "2022", "Y", map[string]any{
				"total":  17_811_291,
				"change": map[string]any{"births": 167_504},
			}))},
	)

	t.Setenv(client.EnvURL, mock.URL())
	t.Setenv(client.EnvEmail, testutil.TestEmail)
	t.Setenv(client.EnvPassword, testutil.TestPassword)
	t.Setenv(client.EnvRedisURL, "")
	return mock
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "country", args: []string{"-country", "Netherlands", "-model", "population"}},
		{name: "refresh", args: []string{"-country", "Netherlands", "-model", "population", "-refresh"}},
		{name: "continent jsonl", args: []string{"-continent", "Europe", "-model", "population", "-format", "jsonl"}},
		{name: "no region", args: []string{"-model", "population"}, wantErr: "exactly one of -continent or -country is required"},
		{name: "both regions", args: []string{"-continent", "Europe", "-country", "Netherlands", "-model", "x"}, wantErr: "exactly one of -continent or -country is required"},
		{name: "no model", args: []string{"-country", "Netherlands"}, wantErr: "-model is required"},
		{name: "bad format", args: []string{"-country", "Netherlands", "-model", "x", "-format", "xlsx"}, wantErr: `unsupported format "xlsx"`},
		{name: "full with fields", args: []string{"-country", "Netherlands", "-model", "x", "-full", "-fields", "a=b"}, wantErr: "-full and -fields are mutually exclusive"},
		{name: "negative descendants", args: []string{"-country", "Netherlands", "-model", "x", "-descendants", "-1"}, wantErr: "-descendants must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsParams(t *testing.T) {
	opts := options{
		periodType:  "q",
		source:      "United Nations, Eurostat",
		from:        "2020",
		to:          "2022-06-30",
		descendants: 2,
	}

	params, err := opts.params()
	if err != nil {
		t.Fatalf("params() error = %v", err)
	}

	want := `descendant_level:2,period_from:"2020-01-01T00:00:00Z",period_to:"2022-06-30T00:00:00Z",` +
		`period_type:"Q",source:["United Nations","Eurostat"]`
	if got := params.Hash(); got != want {
		t.Errorf("params = %s\nwant     %s", got, want)
	}
}

func TestOptionsParams_Invalid(t *testing.T) {
	cases := []options{
		{periodType: "X"},
		{periodType: "Y", from: "last year"},
		{periodType: "Y", from: "2022", to: "2020"},
	}
	for _, opts := range cases {
		if _, err := opts.params(); err == nil {
			t.Errorf("params(%+v) expected error", opts)
		}
	}
}

func TestParseFields(t *testing.T) {
	spec, err := parseFields("total=total, births = change.births,change=change__flatten")
	if err != nil {
		t.Fatalf("parseFields() error = %v", err)
	}
	want := tabular.FieldSpec{"total": "total", "births": "change.births", "change": "change__flatten"}
	if len(spec) != len(want) {
		t.Fatalf("parseFields() = %v, want %v", spec, want)
	}
	for k, v := range want {
		if spec[k] != v {
			t.Errorf("spec[%q] = %q, want %q", k, spec[k], v)
		}
	}

	for _, bad := range []string{"total", "=total", "total="} {
		if _, err := parseFields(bad); err == nil {
			t.Errorf("parseFields(%q) expected error", bad)
		}
	}
}

func TestRun_CSV(t *testing.T) {
	setupMockAPI(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-country", "Netherlands",
		"-model", "population",
		"-fields", "total=total,births=change.births",
	}, &out)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", out.String())
	}

	header := "name,region_type,un_region_code,iso_cc_2,local_region_code,local_region_code_type," +
		"parent_region_code,parent_region_code_type,parent_region_type,region_level," +
		"source_name,period,period_type,data_model_name,births,total"
	if lines[0] != header {
		t.Errorf("header = %q\nwant     %q", lines[0], header)
	}

	want := []string{
		"Netherlands,country,,NL,nl,iso_cc_2,150,un_region_code,continent,0,United Nations,2021,Y,POPULATION,,17700000",
		"Netherlands,country,,NL,nl,iso_cc_2,150,un_region_code,continent,0,United Nations,2022,Y,POPULATION,167504,17811291",
	}
	for i, w := range want {
		if lines[i+1] != w {
			t.Errorf("row %d = %q\nwant    %q", i, lines[i+1], w)
		}
	}
}

func TestRun_FullJSONLinesToFile(t *testing.T) {
	setupMockAPI(t)
	path := filepath.Join(t.TempDir(), "population.jsonl")

	err := run(context.Background(), []string{
		"-country", "netherlands",
		"-model", "Population",
		"-full",
		"-format", "jsonl",
		"-out", path,
	}, io.Discard)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var row map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &row); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if row["change.births"] != float64(167504) {
		t.Errorf("change.births = %v, want 167504", row["change.births"])
	}
	if _, ok := row["density"]; !ok {
		t.Error("full export must include null model fields")
	}
}

func TestRun_Errors(t *testing.T) {
	setupMockAPI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown country", args: []string{"-country", "Atlantis", "-model", "population"}, want: "region not found"},
		{name: "unavailable model", args: []string{"-country", "Netherlands", "-model", "weather"}, want: "model not available"},
		{name: "bad fields", args: []string{"-country", "Netherlands", "-model", "population", "-fields", "x"}, want: "invalid field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), tt.args, io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRun_MissingCredentials(t *testing.T) {
	setupMockAPI(t)
	t.Setenv(client.EnvPassword, "")

	err := run(context.Background(), []string{"-country", "Netherlands", "-model", "population"}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Errorf("run() error = %v, want missing credentials", err)
	}
}

func TestRun_WithRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	mock := setupMockAPI(t)
	redisURL, cleanup := setupTestRedis(t)
	defer cleanup()
	t.Setenv(client.EnvRedisURL, redisURL)

	args := []string{"-country", "Netherlands", "-model", "population", "-full"}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var first, second bytes.Buffer
	if err := run(ctx, args, &first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := run(ctx, args, &second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.String() != second.String() {
		t.Errorf("cached export differs:\n%s\n%s", first.String(), second.String())
	}
	// Two pages on the first run; the second run is served from Redis.
	if got := mock.RequestCount(regionalDataPath); got != 2 {
		t.Errorf("regional data requests = %d, want 2", got)
	}
	if got := mock.RequestCount("/api/countries/"); got != 1 {
		t.Errorf("country list requests = %d, want 1", got)
	}

	// -refresh empties the cache, so every request goes out again.
	var third bytes.Buffer
	if err := run(ctx, append(args, "-refresh"), &third); err != nil {
		t.Fatalf("refresh run: %v", err)
	}
	if third.String() != first.String() {
		t.Errorf("refreshed export differs:\n%s\n%s", first.String(), third.String())
	}
	if got := mock.RequestCount(regionalDataPath); got != 4 {
		t.Errorf("regional data requests after refresh = %d, want 4", got)
	}
	if got := mock.RequestCount("/api/countries/"); got != 2 {
		t.Errorf("country list requests after refresh = %d, want 2", got)
	}
}
