package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/logger"
)

const (
	EnvTest = "test"
	EnvLive = "live"

	defaultNetworkRetries = 2
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", EnvTest, EnvLive)
)

// Client holds the process-wide Stripe configuration. The SDK's resource
// packages read the global key and backend it installs.
type Client struct {
	environment   string
	signingSecret string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	if env != EnvTest && env != EnvLive {
		return nil, errInvalidStripeEnv
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	if keyEnv := environmentOfKey(key); keyEnv != env {
		return nil, fmt.Errorf("stripe key is a %q key but environment is %q", keyEnv, env)
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	retries := int64(cfg.MaxNetworkRetries)
	if retries < 0 {
		retries = defaultNetworkRetries
	}
	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(retries)}
	if logg != nil {
		backendCfg.LeveledLogger = &sdkLogger{logg: logg, ctx: logg.WithField(ctx, "component", "stripe-sdk")}
	}
	stripe.Key = key
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg))

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"stripe_env": env, "max_network_retries": retries}), "stripe.client_ready")
	}
	return &Client{environment: env, signingSecret: secret}, nil
}

// Environment is EnvTest or EnvLive.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// environmentOfKey reads test or live from secret and restricted key prefixes.
func environmentOfKey(key string) string {
	for _, prefix := range []string{"sk_", "rk_"} {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(rest, EnvTest+"_"):
			return EnvTest
		case strings.HasPrefix(rest, EnvLive+"_"):
			return EnvLive
		}
	}
	return "unknown"
}

// sdkLogger routes stripe-go's internal logging through the service logger.
type sdkLogger struct {
	logg *logger.Logger
	ctx  context.Context
}

func (l *sdkLogger) Debugf(format string, v ...any) { l.logg.Debug(l.ctx, fmt.Sprintf(format, v...)) }
func (l *sdkLogger) Infof(format string, v ...any)  { l.logg.Debug(l.ctx, fmt.Sprintf(format, v...)) }
func (l *sdkLogger) Warnf(format string, v ...any)  { l.logg.Warn(l.ctx, fmt.Sprintf(format, v...)) }
func (l *sdkLogger) Errorf(format string, v ...any) {
	l.logg.Error(l.ctx, "stripe.sdk_error", fmt.Errorf(format, v...))
}
