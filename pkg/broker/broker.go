// Package broker hosts named strategies behind HTTP routes: one that
// redirects the browser to the provider and one that receives the
// provider's oauth2callback and hands the outcome to the host's success or
// error handler.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jeremyhahn/go-oauth-strategy/internal/log"
	"github.com/jeremyhahn/go-oauth-strategy/pkg/strategy"
)

// Authenticator is the contract a hosted strategy fulfils.
// *strategy.Strategy implements it.
type Authenticator interface {
	Name() string
	AuthorizationURL() string
	Callback(ctx context.Context, query url.Values) (*strategy.Result, error)
}

// SuccessHandler receives the normalized result of a completed attempt.
type SuccessHandler func(w http.ResponseWriter, r *http.Request, result *strategy.Result)

// ErrorHandler receives the terminal error of a failed attempt.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err *strategy.AuthError)

// Backend is a strategy registered under a route name.
type Backend struct {
	Name     string
	Strategy Authenticator
}

// Config contains the strategies to host and the callbacks to deliver to.
type Config struct {
	Backends []Backend

	// OnSuccess defaults to writing the result as JSON.
	OnSuccess SuccessHandler

	// OnError defaults to writing the error as JSON with status 401.
	OnError ErrorHandler

	// Registerer receives the attempt counter. Nil skips registration.
	Registerer prometheus.Registerer
}

// Service dispatches authentication requests to registered strategies.
type Service struct {
	backends  map[string]Backend
	order     []string
	onSuccess SuccessHandler
	onError   ErrorHandler
	attempts  *prometheus.CounterVec
}

var (
	// ErrNoBackends indicates the service was initialised without any strategies.
	ErrNoBackends = errors.New("broker: no strategies configured")
	// ErrBackendNotFound indicates a requested strategy name does not exist.
	ErrBackendNotFound = errors.New("broker: requested strategy not configured")
)

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// NewService builds a Service from the supplied configuration.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Backends) == 0 {
		return nil, ErrNoBackends
	}

	s := &Service{
		backends:  make(map[string]Backend, len(cfg.Backends)),
		onSuccess: cfg.OnSuccess,
		onError:   cfg.OnError,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbroker",
			Name:      "attempts_total",
			Help:      "Completed authentication attempts by strategy and result.",
		}, []string{"strategy", "result"}),
	}

	for i, b := range cfg.Backends {
		if b.Strategy == nil {
			return nil, fmt.Errorf("broker: backend at index %d has no strategy", i)
		}
		if b.Name == "" {
			b.Name = b.Strategy.Name()
		}
		if !validName.MatchString(b.Name) {
			return nil, fmt.Errorf("broker: invalid strategy name %q", b.Name)
		}
		if _, ok := s.backends[b.Name]; ok {
			return nil, fmt.Errorf("broker: duplicate strategy name %q", b.Name)
		}
		s.backends[b.Name] = b
		s.order = append(s.order, b.Name)
	}

	if s.onSuccess == nil {
		s.onSuccess = WriteResultJSON
	}
	if s.onError == nil {
		s.onError = WriteErrorJSON
	}

	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(s.attempts); err != nil {
			return nil, fmt.Errorf("broker: register metrics: %w", err)
		}
	}

	return s, nil
}

// Names returns the registered strategy names in configuration order.
func (s *Service) Names() []string {
	return append([]string(nil), s.order...)
}

// Close releases resources held by hosted strategies.
func (s *Service) Close() error {
	var errs []error
	for _, name := range s.order {
		if c, ok := s.backends[name].Strategy.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// AuthorizationURL returns the provider authorize URL for name.
func (s *Service) AuthorizationURL(name string) (string, error) {
	b, ok := s.backends[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	return b.Strategy.AuthorizationURL(), nil
}

// Complete runs the callback of strategy name with the provider's query
// parameters and records the outcome.
func (s *Service) Complete(ctx context.Context, name string, query url.Values) (*strategy.Result, error) {
	b, ok := s.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}

	result, err := b.Strategy.Callback(ctx, query)
	if err != nil {
		s.attempts.WithLabelValues(name, resultLabel(err)).Inc()
		return nil, err
	}

	s.attempts.WithLabelValues(name, "success").Inc()
	return result, nil
}

// Handler returns the HTTP routes:
//
//	GET /{strategy}                 redirect to the provider
//	GET /{strategy}/oauth2callback  complete the attempt
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/{strategy}", s.handleRequest)
	r.Get("/{strategy}/oauth2callback", s.handleCallback)
	return r
}

func (s *Service) handleRequest(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "strategy")

	authURL, err := s.AuthorizationURL(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	log.Debug(r.Context()).Str("strategy", name).Msg("redirecting to provider")
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Service) handleCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "strategy")
	if _, ok := s.backends[name]; !ok {
		http.NotFound(w, r)
		return
	}

	attemptID := uuid.NewString()
	ctx := log.WithContext(r.Context(), func(c zerolog.Context) zerolog.Context {
		return c.Str("attempt_id", attemptID)
	})
	r = r.WithContext(ctx)

	result, err := s.Complete(ctx, name, r.URL.Query())
	if err != nil {
		var authErr *strategy.AuthError
		if !errors.As(err, &authErr) {
			authErr = &strategy.AuthError{Code: "internal_error", Message: err.Error(), Err: err}
		}
		s.onError(w, r, authErr)
		return
	}

	s.onSuccess(w, r, result)
}

func resultLabel(err error) string {
	var authErr *strategy.AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return "internal_error"
}

// WriteResultJSON is the default SuccessHandler.
func WriteResultJSON(w http.ResponseWriter, _ *http.Request, result *strategy.Result) {
	writeJSON(w, http.StatusOK, result)
}

// WriteErrorJSON is the default ErrorHandler. Only the code, message and
// phase reach the browser; the upstream response in Raw is logged instead.
func WriteErrorJSON(w http.ResponseWriter, r *http.Request, err *strategy.AuthError) {
	log.Debug(r.Context()).
		Str("code", err.Code).
		Interface("raw", err.Raw).
		Msg("authentication error details")

	body := map[string]any{"code": err.Code}
	if err.Message != "" {
		body["message"] = err.Message
	}
	if err.Phase != "" {
		body["phase"] = err.Phase
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
