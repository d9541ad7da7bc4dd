// Command datagarden-export fetches one regional data model for a continent
// or country and writes it as a CSV or JSON lines table.
//
// Credentials and the API URL come from the environment:
// THE_DATAGARDEN_URL, THE_DATAGARDEN_USER_EMAIL, THE_DATAGARDEN_USER_PASSWORD.
// REDIS_URL enables the response cache; -refresh empties it for the account
// before fetching.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Sternrassler/datagarden-client/pkg/client"
	"github.com/Sternrassler/datagarden-client/pkg/logging"
	"github.com/Sternrassler/datagarden-client/pkg/metrics"
	"github.com/Sternrassler/datagarden-client/pkg/regionaldata"
	"github.com/Sternrassler/datagarden-client/pkg/regions"
	"github.com/Sternrassler/datagarden-client/pkg/tabular"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const (
	formatCSV   = "csv"
	formatJSONL = "jsonl"
)

type options struct {
	continent   string
	country     string
	model       string
	source      string
	periodType  string
	from        string
	to          string
	descendants int
	full        bool
	fields      string
	format      string
	out         string
	refresh     bool
	timeout     time.Duration
}

func main() {
	logging.Setup(logging.ConfigFromEnv())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("Export failed")
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("datagarden-export", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.continent, "continent", "", "continent name, e.g. Europe")
	fs.StringVar(&opts.country, "country", "", "country name, e.g. Netherlands")
	fs.StringVar(&opts.model, "model", "", "data model, e.g. population")
	fs.StringVar(&opts.source, "source", "", "comma separated source names")
	fs.StringVar(&opts.periodType, "period-type", getEnv("DATAGARDEN_PERIOD_TYPE", "Y"), "period type (Y, Q, M, W, D, H)")
	fs.StringVar(&opts.from, "from", "", "first period, YYYY or YYYY-MM-DD")
	fs.StringVar(&opts.to, "to", "", "last period, YYYY or YYYY-MM-DD")
	fs.IntVar(&opts.descendants, "descendants", 0, "include descendant regions down to this level")
	fs.BoolVar(&opts.full, "full", false, "export every model field")
	fs.StringVar(&opts.fields, "fields", "", "columns as col=path,... (append __flatten to a path to expand it)")
	fs.StringVar(&opts.format, "format", getEnv("DATAGARDEN_FORMAT", formatCSV), "output format (csv, jsonl)")
	fs.StringVar(&opts.out, "out", "", "output file (default stdout)")
	fs.BoolVar(&opts.refresh, "refresh", false, "drop this account's cached responses before fetching")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall timeout")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch {
	case (opts.continent == "") == (opts.country == ""):
		return options{}, errors.New("exactly one of -continent or -country is required")
	case opts.model == "":
		return options{}, errors.New("-model is required")
	case opts.format != formatCSV && opts.format != formatJSONL:
		return options{}, fmt.Errorf("unsupported format %q", opts.format)
	case opts.full && opts.fields != "":
		return options{}, errors.New("-full and -fields are mutually exclusive")
	case opts.descendants < 0:
		return options{}, errors.New("-descendants must be >= 0")
	}
	return opts, nil
}

// params builds the query parameters from the flags.
func (o options) params() (regionaldata.Params, error) {
	params := regionaldata.NewParams()

	pt, err := regionaldata.ValidatePeriodType(o.periodType)
	if err != nil {
		return nil, err
	}
	params.WithPeriodType(pt)

	if o.source != "" {
		params.WithSource(splitList(o.source)...)
	}
	if o.descendants > 0 {
		params.WithDescendantLevel(o.descendants)
	}

	from, err := parsePeriod(o.from)
	if err != nil {
		return nil, fmt.Errorf("-from: %w", err)
	}
	to, err := parsePeriod(o.to)
	if err != nil {
		return nil, fmt.Errorf("-to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, errors.New("-to is before -from")
	}
	params.WithPeriodRange(from, to)

	return params, nil
}

// parseFields parses "col=path,col=path" into a field spec.
func parseFields(s string) (tabular.FieldSpec, error) {
	spec := tabular.FieldSpec{}
	for _, item := range splitList(s) {
		column, path, ok := strings.Cut(item, "=")
		column, path = strings.TrimSpace(column), strings.TrimSpace(path)
		if !ok || column == "" || path == "" {
			return nil, fmt.Errorf("invalid field %q, want column=path", item)
		}
		spec[column] = path
	}
	return spec, nil
}

func parsePeriod(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006", "2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid period %q", s)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	params, err := opts.params()
	if err != nil {
		return err
	}
	spec, err := parseFields(opts.fields)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	logger := logging.NewLogger("export")

	cfg := client.ConfigFromEnv()
	if cfg.Redis != nil {
		defer cfg.Redis.Close()
		if err := cfg.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, continuing without response cache")
			cfg.Redis = nil
		}
	}

	c, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	if opts.refresh {
		if _, err := c.ClearCache(ctx); err != nil {
			return err
		}
	}

	api := regions.New(c)
	var region *regions.Region
	if opts.continent != "" {
		region, err = api.Continent(ctx, opts.continent)
	} else {
		region, err = api.Country(ctx, opts.country)
	}
	if err != nil {
		return err
	}

	coll, err := region.Model(ctx, opts.model)
	if err != nil {
		return err
	}
	if err := coll.Query(ctx, params); err != nil {
		return err
	}

	var table *tabular.Table
	if opts.full {
		table, err = coll.FullTable()
	} else {
		table, err = coll.Table(spec)
	}
	if err != nil {
		return err
	}

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if opts.format == formatJSONL {
		err = table.WriteJSONLines(out)
	} else {
		err = table.WriteCSV(out)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", opts.format, err)
	}

	event := logger.Info().
		Str("region", region.String()).
		Str("model", coll.ModelName()).
		Int("rows", table.Len()).
		Int("columns", len(table.Columns()))
	if summary, err := metrics.Summary(prometheus.DefaultGatherer, metrics.Prefix); err == nil {
		for name, value := range summary {
			event = event.Float64(strings.TrimPrefix(name, metrics.Prefix), value)
		}
	}
	event.Msg("Export written")

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
