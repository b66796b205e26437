// Package registry serves chain configurations and API credentials from
// a backing store, with a short-lived read cache in front and a built-in
// fallback set for when the store is unavailable.
package registry

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/txrecon/txrecon/internal/cache"
	"github.com/txrecon/txrecon/internal/domain"
)

const readTTL = 60 * time.Second

// Service is the chain registry. Reads go through a 60-second cache;
// mutations invalidate the whole cache before returning. Mutations are
// rare admin actions, so coarse invalidation trades granularity for
// correctness.
type Service struct {
	store  Store
	logger *zap.Logger

	listCache *cache.Cache[[]domain.ChainConfig]
	cfgCache  *cache.Cache[domain.ChainConfig]

	// getenv resolves the environment-level credential default;
	// injectable for tests.
	getenv func(string) string

	degraded sync.Once
}

// Option configures the Service.
type Option func(*Service)

// WithClock injects the cache clock.
func WithClock(clock cache.Clock) Option {
	return func(s *Service) {
		s.listCache = cache.New[[]domain.ChainConfig](clock)
		s.cfgCache = cache.New[domain.ChainConfig](clock)
	}
}

// WithGetenv overrides environment lookup for credential defaults.
func WithGetenv(getenv func(string) string) Option {
	return func(s *Service) { s.getenv = getenv }
}

// New creates a registry service over store.
func New(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		logger:    logger,
		listCache: cache.New[[]domain.ChainConfig](nil),
		cfgCache:  cache.New[domain.ChainConfig](nil),
		getenv:    os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func canonical(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *Service) logDegradation(err error) {
	s.degraded.Do(func() {
		s.logger.Warn("chain config store unavailable, serving built-in chain set",
			zap.Error(err))
	})
}

// List returns all chain configs, optionally including deactivated ones.
// Served from cache; falls back to the built-in set when the store is
// unavailable.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]domain.ChainConfig, error) {
	key := fmt.Sprintf("all_%t", includeInactive)
	if cached, ok := s.listCache.Get(key); ok {
		return cached, nil
	}

	configs, err := s.store.List(ctx, includeInactive)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		s.logDegradation(err)
		configs = configs[:0]
		for _, cfg := range BuiltinConfigs() {
			if includeInactive || cfg.Active {
				configs = append(configs, cfg)
			}
		}
	}

	s.listCache.Set(key, configs, readTTL)
	return configs, nil
}

// Get returns the config for symbol (case-insensitive). Returns
// ErrConfigNotFound when no such chain exists.
func (s *Service) Get(ctx context.Context, symbol string) (domain.ChainConfig, error) {
	sym := canonical(symbol)
	if cached, ok := s.cfgCache.Get(sym); ok {
		return cached, nil
	}

	cfg, err := s.store.Get(ctx, sym)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			return domain.ChainConfig{}, err
		}
		s.logDegradation(err)
		cfg, err = builtinBySymbol(sym)
		if err != nil {
			return domain.ChainConfig{}, err
		}
	}

	s.cfgCache.Set(sym, cfg, readTTL)
	return cfg, nil
}

func builtinBySymbol(symbol string) (domain.ChainConfig, error) {
	for _, cfg := range BuiltinConfigs() {
		if cfg.Symbol == symbol {
			return cfg, nil
		}
	}
	return domain.ChainConfig{}, ErrConfigNotFound
}

func (s *Service) invalidate() {
	s.listCache.Clear()
	s.cfgCache.Clear()
}

// Create registers a user-added chain. The symbol is canonicalized, the
// asset symbol defaults to the chain symbol, and the adapter kind
// defaults to unsupported.
func (s *Service) Create(ctx context.Context, cfg domain.ChainConfig) (domain.ChainConfig, error) {
	cfg.Symbol = canonical(cfg.Symbol)
	if cfg.Symbol == "" {
		return domain.ChainConfig{}, errors.New("chain symbol is required")
	}
	if cfg.HashPattern == "" {
		return domain.ChainConfig{}, errors.New("hash pattern is required")
	}
	if cfg.AssetSymbol == "" {
		cfg.AssetSymbol = cfg.Symbol
	} else {
		cfg.AssetSymbol = canonical(cfg.AssetSymbol)
	}
	if cfg.Kind == "" {
		cfg.Kind = domain.AdapterUnsupported
	}
	if !cfg.Kind.Valid() {
		return domain.ChainConfig{}, errors.Errorf("unknown adapter kind %q", cfg.Kind)
	}
	cfg.Custom = true
	cfg.Active = true

	if err := s.store.Create(ctx, cfg); err != nil {
		return domain.ChainConfig{}, err
	}
	s.invalidate()
	return cfg, nil
}

// Update replaces the mutable fields of an existing config.
func (s *Service) Update(ctx context.Context, cfg domain.ChainConfig) (domain.ChainConfig, error) {
	cfg.Symbol = canonical(cfg.Symbol)
	if cfg.Kind != "" && !cfg.Kind.Valid() {
		return domain.ChainConfig{}, errors.Errorf("unknown adapter kind %q", cfg.Kind)
	}
	if err := s.store.Update(ctx, cfg); err != nil {
		return domain.ChainConfig{}, err
	}
	s.invalidate()
	return s.store.Get(ctx, cfg.Symbol)
}

// Delete removes a user-added chain. Built-in chains return
// ErrBuiltinChain.
func (s *Service) Delete(ctx context.Context, symbol string) error {
	if err := s.store.Delete(ctx, canonical(symbol)); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Toggle flips a chain's active flag and returns the updated config.
func (s *Service) Toggle(ctx context.Context, symbol string) (domain.ChainConfig, error) {
	cfg, err := s.store.Toggle(ctx, canonical(symbol))
	if err != nil {
		return domain.ChainConfig{}, err
	}
	s.invalidate()
	return cfg, nil
}

// Credential resolves the API secret for symbol. A stored active
// credential wins over the environment-level default named by the
// config; absence of both yields an empty string, not an error. Callers
// treat an empty credential as an unauthenticated request.
func (s *Service) Credential(ctx context.Context, symbol string) (string, error) {
	sym := canonical(symbol)

	secret, err := s.store.Credential(ctx, sym)
	if err != nil && !errors.Is(err, ErrStoreUnavailable) {
		return "", err
	}
	if secret != "" {
		return secret, nil
	}

	cfg, err := s.Get(ctx, sym)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return "", nil
		}
		return "", err
	}
	if cfg.CredentialEnvVar == "" {
		return "", nil
	}
	return s.getenv(cfg.CredentialEnvVar), nil
}

// HasCredential reports whether a non-empty credential resolves for
// symbol, without exposing the secret.
func (s *Service) HasCredential(ctx context.Context, symbol string) (bool, error) {
	secret, err := s.Credential(ctx, symbol)
	if err != nil {
		return false, err
	}
	return secret != "", nil
}

// SetCredential stores (or replaces) the secret for symbol.
func (s *Service) SetCredential(ctx context.Context, symbol, secret, label string) error {
	if secret == "" {
		return errors.New("credential secret is required")
	}
	return s.store.SetCredential(ctx, canonical(symbol), secret, label)
}

// RemoveCredential deletes the stored secret for symbol. The
// environment-level default, if any, applies again afterwards.
func (s *Service) RemoveCredential(ctx context.Context, symbol string) error {
	return s.store.RemoveCredential(ctx, canonical(symbol))
}

// ValidateHash matches text against the config's hash pattern. A
// malformed stored pattern reads as "does not match", never a panic:
// patterns are admin-supplied data, not code.
func (s *Service) ValidateHash(text string, cfg domain.ChainConfig) bool {
	return matchPattern(cfg.HashPattern, text)
}

// ValidateAddress matches text against the config's address pattern. A
// chain without an address pattern accepts any address.
func (s *Service) ValidateAddress(text string, cfg domain.ChainConfig) bool {
	if cfg.AddressPattern == "" {
		return true
	}
	return matchPattern(cfg.AddressPattern, text)
}

func matchPattern(pattern, text string) bool {
	if pattern == "" {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
