package evolution

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Abraxas-365/wagate/configx"
	"github.com/Abraxas-365/wagate/limitx"
	"github.com/Abraxas-365/wagate/validatex"
)

// HTTPOptions configures the transport of one connection
type HTTPOptions struct {
	Timeout        time.Duration `json:"timeout" validatex:"min=0"`
	ConnectTimeout time.Duration `json:"connect_timeout" validatex:"min=0"`
	VerifyTLS      bool          `json:"verify_tls"`
}

// RetryOptions configures the retry loop of one connection
type RetryOptions struct {
	Enabled              bool          `json:"enabled"`
	MaxAttempts          int           `json:"max_attempts" validatex:"min=1,max=20"`
	BaseDelay            time.Duration `json:"base_delay" validatex:"min=0"`
	Multiplier           float64       `json:"multiplier" validatex:"min=0"`
	MaxDelay             time.Duration `json:"max_delay" validatex:"min=0"`
	RetryableStatusCodes []int         `json:"retryable_status_codes"`
}

// LoggingOptions configures request and response tracing
type LoggingOptions struct {
	LogRequests     bool     `json:"log_requests"`
	LogResponses    bool     `json:"log_responses"`
	RedactSensitive bool     `json:"redact_sensitive"`
	SensitiveFields []string `json:"sensitive_fields"`
}

// ConnectionProfile is one named gateway connection. Profiles are immutable
// once added to a ConnectionRegistry.
type ConnectionProfile struct {
	Name              string         `json:"name" validatex:"required"`
	BaseURL           string         `json:"base_url" validatex:"required,url"`
	APIKey            string         `json:"-" validatex:"required"`
	HTTP              HTTPOptions    `json:"http"`
	Retry             RetryOptions   `json:"retry"`
	Logging           LoggingOptions `json:"logging"`
	RateLimit         limitx.Config  `json:"-"`
	ThrowOnError      bool           `json:"throw_on_error"`
	DefaultRetryAfter time.Duration  `json:"retry_after"`
}

var defaultSensitiveFields = []string{"apikey", "token", "password", "secret", "authorization", "base64"}

var defaultRetryableStatusCodes = []int{408, 429, 500, 502, 503, 504}

// DefaultProfile returns a profile with the stock settings
func DefaultProfile(name, baseURL, apiKey string) ConnectionProfile {
	return ConnectionProfile{
		Name:    name,
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP: HTTPOptions{
			Timeout:        30 * time.Second,
			ConnectTimeout: 10 * time.Second,
			VerifyTLS:      true,
		},
		Retry: RetryOptions{
			Enabled:              true,
			MaxAttempts:          3,
			BaseDelay:            200 * time.Millisecond,
			Multiplier:           2,
			MaxDelay:             5 * time.Second,
			RetryableStatusCodes: slices.Clone(defaultRetryableStatusCodes),
		},
		Logging: LoggingOptions{
			RedactSensitive: true,
			SensitiveFields: slices.Clone(defaultSensitiveFields),
		},
		RateLimit: limitx.Config{
			Enabled: true,
			Policy:  limitx.PolicyThrow,
			Default: limitx.Limit{MaxAttempts: 60, Decay: time.Minute},
			Classes: map[limitx.OperationClass]limitx.Limit{},
		},
		ThrowOnError:      true,
		DefaultRetryAfter: 60 * time.Second,
	}
}

// validate checks the profile fields
func (p ConnectionProfile) validate() error {
	if err := validatex.Validate(p); err != nil {
		return ErrorRegistry.NewWithCause(ErrConfiguration, err).
			WithDetail(DetailConnection, p.Name)
	}
	return nil
}

func (p ConnectionProfile) clone() ConnectionProfile {
	c := p
	c.BaseURL = strings.TrimRight(p.BaseURL, "/")
	c.Retry.RetryableStatusCodes = slices.Clone(p.Retry.RetryableStatusCodes)
	c.Logging.SensitiveFields = slices.Clone(p.Logging.SensitiveFields)
	if p.RateLimit.Classes != nil {
		c.RateLimit.Classes = make(map[limitx.OperationClass]limitx.Limit, len(p.RateLimit.Classes))
		for k, v := range p.RateLimit.Classes {
			c.RateLimit.Classes[k] = v
		}
	}
	return c
}

func (p ConnectionProfile) retryable(status int) bool {
	return slices.Contains(p.Retry.RetryableStatusCodes, status)
}

// ----------------------------------------------------------------------------
// Loading from configuration
// ----------------------------------------------------------------------------

// LoadRegistry builds a ConnectionRegistry from the "connections" section.
// "default" names the active connection and "instance" binds an instance.
func LoadRegistry(cfg configx.Config) (*ConnectionRegistry, error) {
	sections := cfg.Get("connections").AsMap()
	if len(sections) == 0 {
		return nil, ErrorRegistry.NewWithMessage(ErrConfiguration, "No connections configured")
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]ConnectionProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, profileFromConfig(cfg, name))
	}

	reg, err := NewConnectionRegistry(profiles...)
	if err != nil {
		return nil, err
	}

	if def := cfg.Get("default").AsString(); def != "" {
		if err := reg.Select(def); err != nil {
			return nil, err
		}
	}
	reg.BindInstance(cfg.Get("instance").AsString())
	return reg, nil
}

func profileFromConfig(cfg configx.Config, name string) ConnectionProfile {
	get := func(key string) configx.Value {
		return cfg.Get("connections." + name + "." + key)
	}

	p := DefaultProfile(name, get("base_url").AsString(), get("api_key").AsString())

	p.HTTP.Timeout = get("http.timeout").AsDurationDefault(p.HTTP.Timeout)
	p.HTTP.ConnectTimeout = get("http.connect_timeout").AsDurationDefault(p.HTTP.ConnectTimeout)
	p.HTTP.VerifyTLS = get("http.verify_tls").AsBoolDefault(p.HTTP.VerifyTLS)

	p.Retry.Enabled = get("retry.enabled").AsBoolDefault(p.Retry.Enabled)
	p.Retry.MaxAttempts = get("retry.max_attempts").AsIntDefault(p.Retry.MaxAttempts)
	p.Retry.BaseDelay = get("retry.base_delay").AsDurationDefault(p.Retry.BaseDelay)
	p.Retry.Multiplier = get("retry.multiplier").AsFloatDefault(p.Retry.Multiplier)
	p.Retry.MaxDelay = get("retry.max_delay").AsDurationDefault(p.Retry.MaxDelay)
	if v := get("retry.retryable_status_codes"); v.IsSet() {
		p.Retry.RetryableStatusCodes = v.AsIntSlice()
	}

	p.Logging.LogRequests = get("logging.log_requests").AsBoolDefault(p.Logging.LogRequests)
	p.Logging.LogResponses = get("logging.log_responses").AsBoolDefault(p.Logging.LogResponses)
	p.Logging.RedactSensitive = get("logging.redact_sensitive").AsBoolDefault(p.Logging.RedactSensitive)
	if v := get("logging.sensitive_fields"); v.IsSet() {
		p.Logging.SensitiveFields = v.AsStringSlice()
	}

	p.RateLimit.Enabled = get("rate_limit.enabled").AsBoolDefault(p.RateLimit.Enabled)
	if v := get("rate_limit.policy"); v.IsSet() {
		p.RateLimit.Policy = limitx.ParsePolicy(v.AsString())
	}
	p.RateLimit.Default = limitFromConfig(get("rate_limit.default"), p.RateLimit.Default)
	// Unconfigured classes stay absent so they share the default limit.
	for _, class := range []limitx.OperationClass{limitx.ClassMessages, limitx.ClassMedia} {
		if v := get("rate_limit." + string(class)); v.IsSet() {
			p.RateLimit.Classes[class] = limitFromConfig(v, p.RateLimit.Default)
		}
	}

	p.ThrowOnError = get("throw_on_error").AsBoolDefault(p.ThrowOnError)
	p.DefaultRetryAfter = get("retry_after").AsDurationDefault(p.DefaultRetryAfter)
	return p
}

func limitFromConfig(v configx.Value, def limitx.Limit) limitx.Limit {
	if !v.IsSet() {
		return def
	}
	m := v.AsMap()
	l := def
	if x, ok := m["max_attempts"]; ok {
		l.MaxAttempts = x.AsIntDefault(def.MaxAttempts)
	}
	if x, ok := m["decay"]; ok {
		l.Decay = x.AsDurationDefault(def.Decay)
	}
	return l
}
