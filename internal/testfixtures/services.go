package testfixtures

import (
	"log/slog"
	"testing"
	"time"

	"github.com/example/club-registration/internal/application"
	"github.com/example/club-registration/internal/persistence"
)

// TokenSecret signs tokens issued by factory built auth services.
const TokenSecret = "test-secret"

// FastPasswordHasher keeps argon2 cheap enough for unit tests.
func FastPasswordHasher() application.PasswordHasher {
	return application.PasswordHasher{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
}

// Services groups the application services wired to one store.
type Services struct {
	Catalog       *application.EventCatalog
	Users         *application.UserService
	Auth          *application.AuthService
	Events        *application.EventService
	Registrations *application.RegistrationService
}

// ServiceFactory builds services with deterministic clocks and identifiers.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
	CacheSize   int
	TokenTTL    time.Duration
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory returns a factory using ReferenceTime and "id" prefixed identifiers.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		CacheSize:   16,
		TokenTTL:    time.Hour,
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

// WithCacheSize sets the event catalog cache size. Zero disables caching.
func WithCacheSize(size int) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.CacheSize = size }
}

// Build wires every service to store.
func (f *ServiceFactory) Build(tb testing.TB, store persistence.Storage) Services {
	tb.Helper()

	catalog, err := application.NewEventCatalog(store, f.CacheSize)
	if err != nil {
		tb.Fatalf("build event catalog: %v", err)
	}
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()

	return Services{
		Catalog:       catalog,
		Users:         application.NewUserServiceWithLogger(store, FastPasswordHasher(), ids, now, f.Logger),
		Auth:          application.NewAuthServiceWithLogger(store, []byte(TokenSecret), nil, now, f.TokenTTL, f.Logger),
		Events:        application.NewEventServiceWithLogger(catalog, store, ids, now, f.Logger),
		Registrations: application.NewRegistrationServiceWithLogger(catalog, store, ids, now, f.Logger),
	}
}
