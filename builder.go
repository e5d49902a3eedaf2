package onboarding

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

const (
	verifyCooldownKeyPrefix   = "ovc"
	recoveryCooldownKeyPrefix = "orc"
)

// Builder assembles an Engine. Configure it with the With* setters and
// call Build exactly once.
type Builder struct {
	config Config
	redis  *redis.Client

	provider IdentityProvider
	accounts AccountStore
	uploader ImageUploader
	notifier Notifier
	audit    AuditSink

	built bool
}

// New creates a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the OTP challenge store
// and the resend cooldown limiters.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithIdentityProvider supplies the external credential authority.
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithAccountStore supplies the external account document store.
func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

// WithImageUploader supplies the optional profile-photo uploader.
func (b *Builder) WithImageUploader(u ImageUploader) *Builder {
	b.uploader = u
	return b
}

// WithNotifier supplies the optional onboarding-complete notifier.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink supplies the audit event consumer and enables the
// dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.audit = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wiring and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.provider == nil {
		return nil, errors.New("identity provider required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.Wizard.NotifyOnComplete && b.notifier == nil {
		return nil, errors.New("Wizard.NotifyOnComplete requires a notifier")
	}

	engine := &Engine{
		config:   cfg,
		provider: b.provider,
		accounts: b.accounts,
		uploader: b.uploader,
		notifier: b.notifier,
	}

	engine.challengeStore = newOTPChallengeStore(b.redis)
	engine.verifyCooldown = newResendCooldownLimiter(b.redis, verifyCooldownKeyPrefix)
	engine.recoveryCooldown = newResendCooldownLimiter(b.redis, recoveryCooldownKeyPrefix)
	engine.audit = newAuditDispatcher(cfg.Audit, b.audit)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
