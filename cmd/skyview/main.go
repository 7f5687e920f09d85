// Command skyview looks up the current weather for one or more cities from the
// terminal.
//
//	skyview [-lang en|tr] [-json] city [city...]
//
// The language preference is kept in the same file store the API uses by
// default, so a -lang choice sticks for later runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"skyview/internal/config"
	"skyview/internal/external"
	"skyview/internal/imagery"
	"skyview/internal/preference"
	"skyview/internal/types"
	"skyview/internal/view"
	"skyview/internal/weather"
	"skyview/internal/widget"
)

// cliClientID scopes the terminal user's preference in the shared store.
const cliClientID = "cli"

// maxParallelLookups bounds concurrent city lookups.
const maxParallelLookups = 4

// Exit codes.
const (
	exitOK       = 0
	exitLookup   = 1
	exitUsage    = 2
	exitInternal = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	lang    string
	json    bool
	verbose bool
	cities  []string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("skyview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.lang, "lang", "", "interface language to use and remember (en, tr)")
	fs.BoolVar(&opts.json, "json", false, "print view models as JSON")
	fs.BoolVar(&opts.verbose, "v", false, "log debug output to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: skyview [-lang en|tr] [-json] [-v] city [city...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.cities = fs.Args()
	if len(opts.cities) == 0 {
		fs.Usage()
		return opts, errors.New("at least one city is required")
	}
	return opts, nil
}

// cityResult pairs a requested city with its rendered view.
type cityResult struct {
	Query string         `json:"query"`
	View  view.ViewModel `json:"view"`
	Err   string         `json:"error,omitempty"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "skyview: %v\n", err)
		return exitInternal
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		logger.Warn("provider credentials missing, lookups will fail", "keys", missing)
	}

	deps := newDeps(cfg, logger)

	// The preference is read once here; every lookup reuses the result.
	// A session without a city saves a new preference and fetches nothing.
	prefs := widget.NewSession(ctx, cliClientID, deps)
	if opts.lang != "" {
		if _, err := prefs.SetLanguage(ctx, opts.lang); err != nil {
			fmt.Fprintf(stderr, "skyview: %v\n", err)
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.HTTPStatus() == http.StatusBadRequest {
				return exitUsage
			}
			return exitInternal
		}
	}

	results := lookupAll(ctx, deps, prefs.Language(), opts.cities)

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(stderr, "skyview: %v\n", err)
			return exitInternal
		}
	} else {
		for _, r := range results {
			printText(stdout, r)
		}
	}

	for _, r := range results {
		if r.Err != "" || r.View.Error != "" {
			return exitLookup
		}
	}
	return exitOK
}

// lookupAll runs one session per city in lang, at most maxParallelLookups at
// a time. Results keep the order of cities.
func lookupAll(ctx context.Context, deps widget.Deps, lang types.Language, cities []string) []cityResult {
	results := make([]cityResult, len(cities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)

	for i, city := range cities {
		g.Go(func() error {
			s := widget.NewSessionWithLanguage(cliClientID, lang, deps)
			vm, err := s.Submit(gctx, city)
			results[i] = cityResult{Query: city, View: vm}
			if err != nil {
				results[i].Err = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func printText(w io.Writer, r cityResult) {
	vm := r.View
	switch {
	case r.Err != "":
		fmt.Fprintf(w, "%s: %s\n", r.Query, r.Err)
	case vm.Weather == nil:
		reason := vm.Error
		if reason == "" {
			reason = "no weather data"
		}
		fmt.Fprintf(w, "%s: %s\n", r.Query, reason)
	default:
		parts := []string{vm.Weather.Temperature + " °C", vm.Labels.Humidity + " " + vm.Weather.HumidityText}
		if vm.Weather.Description != "" {
			parts = append(parts, vm.Weather.Description)
		}
		fmt.Fprintf(w, "%s: %s\n", vm.Weather.Place, strings.Join(parts, " | "))
		if vm.BackgroundURL != "" {
			fmt.Fprintf(w, "  %s\n", vm.BackgroundURL)
		}
	}
}

func newDeps(cfg *config.Config, logger *slog.Logger) widget.Deps {
	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}

	weatherBase := external.NewBaseClient(httpClient, types.ProviderWeather, cfg.Upstream.UserAgent)
	imageBase := external.NewBaseClient(httpClient, types.ProviderImage, cfg.Upstream.UserAgent)

	return widget.Deps{
		Weather: weather.NewClient(weatherBase, cfg.Weather.APIKey, cfg.Weather.BaseURL),
		Images: imagery.NewClient(imageBase, cfg.Imagery.AccessKey, cfg.Imagery.BaseURL, imagery.Options{
			PageSize:    cfg.Imagery.PageSize,
			Orientation: cfg.Imagery.Orientation,
		}),
		Preferences: preference.NewFileStore(cfg.Preferences.FilePath, cfg.Preferences.Key),
		Builder:     view.NewBuilder(cfg.Weather.IconBaseURL),
		Logger:      logger,
	}
}
