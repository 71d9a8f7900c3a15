package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func minimalEnv() map[string]string {
	return map[string]string{
		"API_AUTH_JWT_SECRET": "dev-secret",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(minimalEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Persistence.Driver != DriverMemory {
		t.Errorf("expected memory driver, got %s", cfg.Persistence.Driver)
	}
	if cfg.Events.Driver != EventsNone || cfg.Events.Topic != "order-events" {
		t.Errorf("unexpected events config %+v", cfg.Events)
	}
	if cfg.Auth.Mode != AuthModeJWT {
		t.Errorf("expected jwt auth mode, got %s", cfg.Auth.Mode)
	}
	if cfg.Orders.CODLimit != 1000 {
		t.Errorf("expected cod limit 1000, got %v", cfg.Orders.CODLimit)
	}
	if cfg.PSP.Timeout != 10*time.Second {
		t.Errorf("unexpected psp timeout: %s", cfg.PSP.Timeout)
	}
	if cfg.PSP.CardCurrency != "usd" || cfg.PSP.RegionalCurrency != "INR" {
		t.Errorf("unexpected currencies %s/%s", cfg.PSP.CardCurrency, cfg.PSP.RegionalCurrency)
	}
	if cfg.PSP.RegionalBaseURL != defaultRegionalBaseURL {
		t.Errorf("unexpected regional base url %s", cfg.PSP.RegionalBaseURL)
	}
	if cfg.PSP.CardEnabled() || cfg.PSP.RegionalEnabled() {
		t.Errorf("expected providers disabled without credentials")
	}
	if cfg.Redis.CartTTL != defaultRedisCartTTL {
		t.Errorf("unexpected cart ttl %s", cfg.Redis.CartTTL)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                 "9090",
		"API_SERVER_IDLE_TIMEOUT":         "2m",
		"API_PERSISTENCE_DRIVER":          "Postgres",
		"API_POSTGRES_DSN":                "secret://db/dsn",
		"API_POSTGRES_AUTO_MIGRATE":       "false",
		"API_FIREBASE_PROJECT_ID":         "shop-prod",
		"API_REDIS_ADDR":                  "redis:6379",
		"API_REDIS_PASSWORD":              "sm://redis/password",
		"API_REDIS_DB":                    "2",
		"API_EVENTS_DRIVER":               "kafka",
		"API_EVENTS_TOPIC":                "orders",
		"API_KAFKA_BROKERS":               "k1:9092, k2:9092",
		"API_AUTH_MODE":                   "firebase",
		"API_ORDER_COD_LIMIT":             "250.5",
		"API_PSP_TIMEOUT":                 "4s",
		"API_PSP_STRIPE_API_KEY":          "secret://stripe/api",
		"API_PSP_STRIPE_WEBHOOK_SECRET":   "secret://stripe/webhook",
		"API_PSP_CARD_CURRENCY":           "EUR",
		"API_PSP_REGIONAL_BASE_URL":       "https://psp.example.com/v1/",
		"API_PSP_REGIONAL_KEY_ID":         "rzp_key",
		"API_PSP_REGIONAL_KEY_SECRET":     "secret://regional/key",
		"API_PSP_REGIONAL_WEBHOOK_SECRET": "secret://regional/webhook",
		"API_SECURITY_ENVIRONMENT":        "PROD",
		"API_IDEMPOTENCY_HEADER":          "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":             "48h",
	}

	secrets := map[string]string{
		"secret://db/dsn":           "postgres://app@db/shop",
		"secret://redis/password":   "redis-pass",
		"secret://stripe/api":       "sk_test_123",
		"secret://stripe/webhook":   "whsec_123",
		"secret://regional/key":     "regional-secret",
		"secret://regional/webhook": "regional-webhook",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Persistence.Driver != DriverPostgres {
		t.Errorf("expected postgres driver, got %s", cfg.Persistence.Driver)
	}
	if cfg.Postgres.DSN != "postgres://app@db/shop" || cfg.Postgres.AutoMigrate {
		t.Errorf("unexpected postgres config %+v", cfg.Postgres)
	}
	if cfg.Redis.Password != "redis-pass" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Auth.Mode != AuthModeFirebase {
		t.Errorf("expected firebase auth, got %s", cfg.Auth.Mode)
	}
	if cfg.Orders.CODLimit != 250.5 {
		t.Errorf("unexpected cod limit %v", cfg.Orders.CODLimit)
	}
	if cfg.PSP.StripeAPIKey != "sk_test_123" || cfg.PSP.StripeWebhookSecret != "whsec_123" {
		t.Errorf("expected resolved stripe secrets, got %+v", cfg.PSP)
	}
	if cfg.PSP.CardCurrency != "eur" {
		t.Errorf("expected lower-cased card currency, got %s", cfg.PSP.CardCurrency)
	}
	if cfg.PSP.RegionalBaseURL != "https://psp.example.com/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.PSP.RegionalBaseURL)
	}
	if !cfg.PSP.CardEnabled() || !cfg.PSP.RegionalEnabled() {
		t.Errorf("expected both providers enabled")
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Security.SecretsProjectID != "shop-prod" {
		t.Errorf("expected secrets project to default to firebase project, got %s", cfg.Security.SecretsProjectID)
	}
	if cfg.Firestore.ProjectID != "shop-prod" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config %+v", cfg.Idempotency)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nexport API_AUTH_JWT_SECRET=\"dot-secret\"\n# comment\nAPI_ORDER_COD_LIMIT=500\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "dot-secret" {
		t.Errorf("expected jwt secret from dotenv, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Orders.CODLimit != 500 {
		t.Errorf("expected cod limit from dotenv, got %v", cfg.Orders.CODLimit)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{name: "jwt without secret", env: map[string]string{}, field: "Auth.JWTSecret"},
		{name: "unknown driver", env: map[string]string{"API_AUTH_JWT_SECRET": "s", "API_PERSISTENCE_DRIVER": "mongo"}, field: "Persistence.Driver"},
		{name: "firestore without project", env: map[string]string{"API_AUTH_JWT_SECRET": "s", "API_PERSISTENCE_DRIVER": "firestore"}, field: "Firestore.ProjectID"},
		{name: "postgres without dsn", env: map[string]string{"API_AUTH_JWT_SECRET": "s", "API_PERSISTENCE_DRIVER": "postgres"}, field: "Postgres.DSN"},
		{name: "kafka without brokers", env: map[string]string{"API_AUTH_JWT_SECRET": "s", "API_EVENTS_DRIVER": "kafka"}, field: "Events.KafkaBrokers"},
		{name: "firebase auth without project", env: map[string]string{"API_AUTH_MODE": "firebase"}, field: "Firebase.ProjectID"},
		{name: "stripe without webhook secret", env: map[string]string{"API_AUTH_JWT_SECRET": "s", "API_PSP_STRIPE_API_KEY": "sk"}, field: "PSP.StripeWebhookSecret"},
		{name: "non positive cod limit", env: map[string]string{"API_AUTH_JWT_SECRET": "s", "API_ORDER_COD_LIMIT": "0"}, field: "Orders.CODLimit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), WithEnvMap(tc.env), WithoutSystemEnv(), WithEnvFile(""))
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %T (%v)", err, err)
			}
			found := false
			for _, f := range validation.Fields() {
				if f == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %s in %v", tc.field, validation.Fields())
			}
		})
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := minimalEnv()
	env["API_PSP_STRIPE_API_KEY"] = "secret://missing"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRETS_PROJECT_ID", "secrets-project")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRETS_PROJECT_ID"]; got != "secrets-project" {
		t.Fatalf("expected system env value, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(minimalEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeWebhookSecret"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("PSP.StripeWebhookSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "PSP.RegionalKeySecret" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(minimalEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.RegionalKeySecret"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_AUTH_JWT_SECRET": "sm://auth/jwt",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref == "secret://auth/jwt" {
			return "legacy-secret", nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.JWTSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Auth.JWTSecret)
	}
}
