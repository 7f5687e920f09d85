// Package widget runs the lookup pipeline for one client: city intake,
// weather fetch, image search and view rendering.
//
// A Session may serve overlapping requests. Each lookup takes a sequence
// number when it starts and its results are applied only while that number
// is still the latest, so a slow response can never overwrite a newer one.
package widget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"skyview/internal/imagery"
	"skyview/internal/preference"
	"skyview/internal/types"
	"skyview/internal/view"
	"skyview/internal/weather"
)

// Fetch outcomes reported to FetchMetrics.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"
	ResultStale   = "stale"
)

// FetchMetrics records one upstream call.
type FetchMetrics interface {
	RecordFetch(ctx context.Context, provider, result string, duration time.Duration)
}

type noopFetchMetrics struct{}

func (noopFetchMetrics) RecordFetch(context.Context, string, string, time.Duration) {}

// Deps are the collaborators shared by every session.
type Deps struct {
	Weather     weather.Fetcher
	Images      imagery.Searcher
	Preferences preference.Store
	Builder     *view.Builder
	Logger      *slog.Logger
	Metrics     FetchMetrics
	Clock       types.Clock
}

func (d Deps) withDefaults() Deps {
	if d.Builder == nil {
		d.Builder = view.NewBuilder("")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = noopFetchMetrics{}
	}
	if d.Clock == nil {
		d.Clock = types.RealClock{}
	}
	return d
}

// Session holds the widget state of one client.
type Session struct {
	clientID string
	deps     Deps
	logger   *slog.Logger

	mu      sync.Mutex
	seq     uint64
	lang    types.Language
	city    types.CityQuery
	record  *types.WeatherRecord
	image   *types.ImageResult
	loading types.LoadingFlags
	failure types.ErrorCode

	watchers map[chan struct{}]struct{}
}

// NewSession creates a session and loads the client's language preference.
// A missing, unreadable or unsupported preference selects the default
// language; only the last two are logged.
func NewSession(ctx context.Context, clientID string, deps Deps) *Session {
	s := NewSessionWithLanguage(clientID, types.DefaultLanguage, deps)
	if s.deps.Preferences == nil {
		return s
	}

	stored, ok, err := s.deps.Preferences.Load(ctx, clientID)
	switch {
	case err != nil:
		s.logger.Warn("failed to load language preference, using default",
			"error", err, "language", types.DefaultLanguage)
	case !ok:
	case !stored.Valid():
		s.logger.Warn("unsupported stored language, using default",
			"stored", string(stored), "language", types.DefaultLanguage)
	default:
		s.lang = stored
	}
	return s
}

// NewSessionWithLanguage creates a session with an already resolved language
// and does not read the preference store. An invalid lang selects the
// default.
func NewSessionWithLanguage(clientID string, lang types.Language, deps Deps) *Session {
	deps = deps.withDefaults()
	if !lang.Valid() {
		lang = types.DefaultLanguage
	}
	return &Session{
		clientID: clientID,
		deps:     deps,
		logger:   deps.Logger.With("client_id", clientID),
		lang:     lang,
	}
}

// ClientID returns the identifier the session was created for.
func (s *Session) ClientID() string {
	return s.clientID
}

// Language returns the active language.
func (s *Session) Language() types.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Submit replaces the current city and runs the lookup. Upstream failures are
// logged and reflected in the returned view, not returned as errors; the only
// error is a validation error for an empty city.
func (s *Session) Submit(ctx context.Context, rawCity string) (view.ViewModel, error) {
	city, err := types.ParseCityQuery(rawCity)
	if err != nil {
		return s.View(), err
	}

	s.mu.Lock()
	s.city = city
	seq, lang := s.begin()
	s.mu.Unlock()

	s.run(ctx, seq, city, lang)
	return s.View(), nil
}

// SetLanguage validates and persists lang, then refetches the current city
// (if any) so the condition text follows the new language.
func (s *Session) SetLanguage(ctx context.Context, raw string) (view.ViewModel, error) {
	lang, ok := types.ParseLanguage(raw)
	if !ok {
		return s.View(), types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLanguage,
			"unsupported language", nil, map[string]any{"language": raw, "supported": types.SupportedLanguages})
	}

	if s.deps.Preferences != nil {
		if err := s.deps.Preferences.Save(ctx, s.clientID, lang); err != nil {
			s.logger.Error("failed to save language preference", "error", err, "language", lang.String())
			return s.View(), err
		}
	}

	s.mu.Lock()
	changed := s.lang != lang
	s.lang = lang
	city := s.city
	if changed {
		s.changedLocked()
	}
	if !changed || city == "" {
		s.mu.Unlock()
		return s.View(), nil
	}
	seq, _ := s.begin()
	s.mu.Unlock()

	s.run(ctx, seq, city, lang)
	return s.View(), nil
}

// View renders the current state.
func (s *Session) View() view.ViewModel {
	return s.deps.Builder.Build(s.Snapshot())
}

// Snapshot copies the current state.
func (s *Session) Snapshot() view.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view.Snapshot{
		Language: s.lang,
		City:     s.city,
		Weather:  s.record,
		Image:    s.image,
		Loading:  s.loading,
		Failure:  s.failure,
	}
}

// begin starts a new lookup generation. The caller holds s.mu.
// The new generation owns both loading flags.
func (s *Session) begin() (uint64, types.Language) {
	s.seq++
	s.loading = types.LoadingFlags{Weather: true}
	s.changedLocked()
	return s.seq, s.lang
}

// Watch returns a channel that is signalled after every state change, and a
// function that ends the watch. Signals coalesce, so a slow reader should
// re-read View after each one rather than count them.
func (s *Session) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.watchers == nil {
		s.watchers = make(map[chan struct{}]struct{})
	}
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}
}

// changedLocked signals every watcher without blocking. The caller holds s.mu.
func (s *Session) changedLocked() {
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) run(ctx context.Context, seq uint64, city types.CityQuery, lang types.Language) {
	record, current := s.fetchWeather(ctx, seq, city, lang)
	if !current || record == nil {
		return
	}

	description := record.Description()
	if description == "" {
		s.logger.Debug("weather has no condition, skipping image search", "city", string(city))
		return
	}
	s.fetchImage(ctx, seq, description)
}

// fetchWeather performs the weather call for generation seq and applies its
// outcome. current is false when a newer lookup started in the meantime.
func (s *Session) fetchWeather(ctx context.Context, seq uint64, city types.CityQuery, lang types.Language) (record *types.WeatherRecord, current bool) {
	start := s.deps.Clock.Now()
	var err error

	defer func() {
		result := ResultSuccess
		if record == nil {
			result = ResultError
		}

		s.mu.Lock()
		current = s.seq == seq
		if current {
			s.loading.Weather = false
			s.record = record
			s.failure = ""
			if record == nil {
				s.failure = types.CodeOf(err)
			}
			s.changedLocked()
		}
		s.mu.Unlock()

		if !current {
			result = ResultStale
			record = nil
			s.logger.Debug("discarding stale weather response", "city", string(city), "seq", seq)
		}
		s.deps.Metrics.RecordFetch(ctx, types.ProviderWeather, result, s.deps.Clock.Now().Sub(start))
	}()

	record, err = s.deps.Weather.Fetch(ctx, city, lang)
	if err != nil {
		record = nil
		s.logger.Warn("weather fetch failed", "city", string(city), "error", err)
	}
	return record, true
}

func (s *Session) fetchImage(ctx context.Context, seq uint64, description string) {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		return
	}
	s.loading.Image = true
	s.changedLocked()
	s.mu.Unlock()

	start := s.deps.Clock.Now()
	var (
		img   types.ImageResult
		found bool
		err   error
	)

	defer func() {
		result := ResultSuccess
		switch {
		case err != nil:
			result = ResultError
		case !found:
			result = ResultEmpty
		}

		s.mu.Lock()
		current := s.seq == seq
		if current {
			s.loading.Image = false
			if found {
				s.image = &img
			}
			s.changedLocked()
		}
		s.mu.Unlock()

		if !current {
			result = ResultStale
			s.logger.Debug("discarding stale image response", "query", description, "seq", seq)
		}
		s.deps.Metrics.RecordFetch(ctx, types.ProviderImage, result, s.deps.Clock.Now().Sub(start))
	}()

	img, found, err = s.deps.Images.Search(ctx, description)
	switch {
	case err != nil:
		found = false
		s.logger.Warn("image search failed", "query", description, "error", err)
	case !found:
		s.logger.Info("image search returned no results", "query", description)
	}
}
