// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"

	"github.com/jmoldow/lazykit/lazy"
	"github.com/jmoldow/lazykit/lazyconf"
	"github.com/jmoldow/lazykit/lazytext"
	"github.com/jmoldow/lazykit/memo"
)

// ErrUnknownAPIKey is returned when an X-API-Key header does not match any
// registered visitor.
var ErrUnknownAPIKey = errors.New("unknown api key")

// Visitor identifies the caller of an API request. Requests without an
// X-API-Key header resolve to an anonymous visitor without touching the
// database.
type Visitor struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Anonymous bool   `json:"anonymous"`
}

const (
	greetingKey = "greeting"
	visitsKey   = "visits"
)

var builtinGreetings = map[string]string{
	"en": "Hello!",
	"de": "Hallo!",
	"fr": "Bonjour !",
	"es": "¡Hola!",
}

var builtinVisitLines = map[string]string{
	"en": "You have visited %d times.",
	"de": "Du hast uns %d Mal besucht.",
	"fr": "Vous nous avez rendu visite %d fois.",
	"es": "Nos has visitado %d veces.",
}

type visitorFn = func(ctx context.Context, apiKey string) (Visitor, error)

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	api_key TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	role    TEXT NOT NULL DEFAULT 'member'
);
CREATE TABLE IF NOT EXISTS visits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	visited_at TEXT NOT NULL
);
INSERT OR IGNORE INTO visitors (api_key, name, role) VALUES ('demo-key', 'Demo User', 'admin');
`

// Server implements the lazykitd HTTP API. Its expensive dependencies, the
// SQLite database and the memoization store, are lazy values: nothing is
// opened until the first request that needs them, and a failed open is
// retried on the next request.
type Server struct {
	logger     zerolog.Logger
	holder     *lazyconf.Holder[Config]
	translator *lazytext.Translator

	db     *lazy.Value[*sql.DB]
	store  *lazy.Value[memo.Store]
	lookup *lazy.Value[visitorFn]

	startedAt time.Time

	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// NewServer builds the API server around the given config holder. The
// configuration itself is read once here; the database and memo store stay
// unopened until first use.
func NewServer(logger zerolog.Logger, holder *lazyconf.Holder[Config]) (*Server, error) {
	cfg, err := holder.Get()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	fallback, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("parse default language: %w", err)
	}

	s := &Server{
		logger:     logger,
		holder:     holder,
		translator: lazytext.NewTranslator(fallback),
		startedAt:  time.Now(),
	}

	for raw, msgText := range builtinGreetings {
		if err := s.translator.SetString(language.MustParse(raw), greetingKey, msgText); err != nil {
			return nil, fmt.Errorf("seed greeting catalog: %w", err)
		}
	}
	for raw, msgText := range builtinVisitLines {
		if err := s.translator.SetString(language.MustParse(raw), visitsKey, msgText); err != nil {
			return nil, fmt.Errorf("seed visits catalog: %w", err)
		}
	}

	s.db = lazy.New(s.openDatabase)
	s.store = lazy.New(s.openStore)
	s.lookup = lazy.New(s.buildLookup)

	s.ApplyConfig(cfg)
	return s, nil
}

// ApplyConfig folds a new configuration into the running server. It is
// called once at startup and again on every accepted reload. Backend
// selection and listen addresses are fixed at startup; language settings
// take effect immediately.
func (s *Server) ApplyConfig(cfg Config) {
	if tag, err := language.Parse(cfg.DefaultLanguage); err == nil {
		s.translator.SetDefault(tag)
	}
	for raw, msgText := range cfg.Greetings {
		tag, err := language.Parse(raw)
		if err != nil {
			continue
		}
		if err := s.translator.SetString(tag, greetingKey, msgText); err != nil {
			s.logger.Warn().Err(err).
				Str("event", "config.greeting_rejected").
				Str("language", raw).
				Msg("greeting override rejected")
		}
	}

	s.logger.Info().
		Str("event", "config.applied").
		Str("language", cfg.DefaultLanguage).
		Int("greeting_overrides", len(cfg.Greetings)).
		Msg("configuration applied")
}

// openDatabase is the setup function behind s.db. It runs at most once per
// successful open, on the first request that needs SQLite.
func (s *Server) openDatabase() (*sql.DB, error) {
	cfg, err := s.holder.Get()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}
	// modernc sqlite allows a single writer; serialise access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s.addCloser("sqlite", db.Close)
	s.logger.Info().
		Str("event", "sqlite.opened").
		Str("path", cfg.SQLitePath).
		Msg("sqlite database opened")
	return db, nil
}

// openStore is the setup function behind s.store. The backend comes from
// the configuration; "off" degrades to a store that caches nothing.
func (s *Server) openStore() (memo.Store, error) {
	cfg, err := s.holder.Get()
	if err != nil {
		return nil, err
	}

	switch cfg.Memo.Backend {
	case "off":
		return memo.NewNopStore(), nil
	case "memory":
		st := memo.NewMemoryStore(durationOr(cfg.Memo.CleanupInterval, time.Minute))
		s.addCloser("memo-memory", func() error {
			st.Stop()
			return nil
		})
		return st, nil
	case "redis":
		st, err := memo.NewRedisStore(memo.RedisConfig{
			Addr:     cfg.Memo.RedisAddr,
			Password: cfg.Memo.RedisPassword,
			DB:       cfg.Memo.RedisDB,
		}, s.logger)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		s.addCloser("memo-redis", st.Close)
		return st, nil
	case "badger":
		st, err := memo.OpenBadgerStore(cfg.Memo.BadgerPath, s.logger)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		s.addCloser("memo-badger", st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("invalid memo backend %q", cfg.Memo.Backend)
	}
}

// buildLookup memoizes visitor lookups over the configured store. Errors
// are never cached, so an unknown key is re-checked on every request.
func (s *Server) buildLookup() (visitorFn, error) {
	store, err := s.store.Force()
	if err != nil {
		return nil, err
	}
	cfg, err := s.holder.Get()
	if err != nil {
		return nil, err
	}
	return memo.Memoize(store, s.queryVisitor, memo.Options[string]{
		Key: func(apiKey string) string { return "visitor:" + apiKey },
		TTL: durationOr(cfg.Memo.TTL, time.Minute),
	}), nil
}

func (s *Server) queryVisitor(ctx context.Context, apiKey string) (Visitor, error) {
	db, err := s.db.Force()
	if err != nil {
		return Visitor{}, err
	}

	var v Visitor
	err = db.QueryRowContext(ctx, `SELECT name, role FROM visitors WHERE api_key = ?`, apiKey).
		Scan(&v.Name, &v.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return Visitor{}, ErrUnknownAPIKey
	}
	if err != nil {
		return Visitor{}, fmt.Errorf("query visitor: %w", err)
	}
	return v, nil
}

// resolveVisitor is the per-request setup wired into the visitor slot.
// It only runs when a handler forces the slot.
func (s *Server) resolveVisitor(r *http.Request) (Visitor, error) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		return Visitor{Name: "anonymous", Role: "guest", Anonymous: true}, nil
	}

	fn, err := s.lookup.Force()
	if err != nil {
		return Visitor{}, err
	}
	return fn(r.Context(), apiKey)
}

func (s *Server) addCloser(name string, close func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, namedCloser{name: name, close: close})
}

// Close releases every resource a lazy value has opened, in reverse order.
// Values that were never forced have nothing to release.
func (s *Server) Close(context.Context) error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.close(); err != nil {
			s.logger.Warn().Err(err).
				Str("event", "server.close_failed").
				Str("resource", c.name).
				Msg("resource close failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		s.logger.Debug().
			Str("event", "server.resource_closed").
			Str("resource", c.name).
			Msg("resource closed")
	}
	return errors.Join(errs...)
}
