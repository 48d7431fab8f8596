package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCurrency              = "USD"
	defaultFreeShippingThreshold = int64(10000)
	defaultFlatShippingFee       = int64(499)
	defaultTaxRateBasisPoints    = int64(600)

	defaultCartEventsTopic  = "cart-events"
	defaultOrderEventsTopic = "order-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Pricing   PricingConfig
	Features  FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the topics change events are published to.
type PubSubConfig struct {
	ProjectID        string
	CartEventsTopic  string
	OrderEventsTopic string
}

// PricingConfig consolidates the checkout business constants so call sites
// cannot drift apart: the free-shipping threshold, the flat fee charged below
// it, and the tax rate. Amounts are minor units; the rate is basis points.
type PricingConfig struct {
	Currency              string
	FreeShippingThreshold int64
	FlatShippingFee       int64
	TaxRateBasisPoints    int64
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableEvents bool
}

// ValidationError reports a configuration value that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// Option customises the loader behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile string
	lookup  func(string) (string, bool)
}

// WithEnvFile overrides the .env file consulted before the process env.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = strings.TrimSpace(path)
	}
}

// WithLookup overrides the environment lookup, primarily for tests.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *loaderOptions) {
		if lookup != nil {
			o.lookup = lookup
		}
	}
}

// Load assembles the Config from the environment, applying defaults and
// validating cross-field requirements.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, lookup: os.LookupEnv}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues := map[string]string{}
	if options.envFile != "" {
		if values, err := readEnvFile(options.envFile); err == nil {
			fileValues = values
		}
	}

	get := func(key string) string {
		if value, ok := options.lookup(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         firstNonEmpty(get("PORT"), defaultPort),
			ReadTimeout:  durationOrDefault(get("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOrDefault(get("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOrDefault(get("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       firstNonEmpty(get("FIREBASE_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			CredentialsFile: get("FIREBASE_CREDENTIALS_FILE"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    firstNonEmpty(get("FIRESTORE_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			EmulatorHost: get("FIRESTORE_EMULATOR_HOST"),
		},
		PubSub: PubSubConfig{
			ProjectID:        firstNonEmpty(get("PUBSUB_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			CartEventsTopic:  firstNonEmpty(get("PUBSUB_CART_EVENTS_TOPIC"), defaultCartEventsTopic),
			OrderEventsTopic: firstNonEmpty(get("PUBSUB_ORDER_EVENTS_TOPIC"), defaultOrderEventsTopic),
		},
		Pricing: PricingConfig{
			Currency:              strings.ToUpper(firstNonEmpty(get("PRICING_CURRENCY"), defaultCurrency)),
			FreeShippingThreshold: int64OrDefault(get("PRICING_FREE_SHIPPING_THRESHOLD"), defaultFreeShippingThreshold),
			FlatShippingFee:       int64OrDefault(get("PRICING_FLAT_SHIPPING_FEE"), defaultFlatShippingFee),
			TaxRateBasisPoints:    int64OrDefault(get("PRICING_TAX_RATE_BPS"), defaultTaxRateBasisPoints),
		},
		Features: FeatureFlags{
			EnableEvents: boolOrDefault(get("FEATURE_EVENTS"), true),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.Firestore.ProjectID) == "" && strings.TrimSpace(c.Firestore.EmulatorHost) == "" {
		errs = append(errs, ValidationError{Field: "FIRESTORE_PROJECT_ID", Reason: "is required unless the emulator host is set"})
	}
	if c.Pricing.FreeShippingThreshold < 0 {
		errs = append(errs, ValidationError{Field: "PRICING_FREE_SHIPPING_THRESHOLD", Reason: "must not be negative"})
	}
	if c.Pricing.FlatShippingFee < 0 {
		errs = append(errs, ValidationError{Field: "PRICING_FLAT_SHIPPING_FEE", Reason: "must not be negative"})
	}
	if c.Pricing.TaxRateBasisPoints < 0 || c.Pricing.TaxRateBasisPoints > 10000 {
		errs = append(errs, ValidationError{Field: "PRICING_TAX_RATE_BPS", Reason: "must be between 0 and 10000"})
	}
	if len(c.Pricing.Currency) != 3 {
		errs = append(errs, ValidationError{Field: "PRICING_CURRENCY", Reason: "must be a 3-letter ISO code"})
	}
	return errors.Join(errs...)
}

func readEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	return values, scanner.Err()
}

func durationOrDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func int64OrDefault(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return parsed
	}
	return fallback
}

func boolOrDefault(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	if parsed, err := strconv.ParseBool(raw); err == nil {
		return parsed
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
