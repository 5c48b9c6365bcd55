package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
)

const EnvPrefix = "OPENAPI_REGEN_"

type Escalation string

const (
	EscalationSudo      Escalation = "sudo"
	EscalationContainer Escalation = "container"
	EscalationNone      Escalation = "none"
)

func (e Escalation) Valid() bool {
	switch e {
	case EscalationSudo, EscalationContainer, EscalationNone:
		return true
	default:
		return false
	}
}

// Config holds the settings for one regeneration run. Every field can be set
// through an OPENAPI_REGEN_ prefixed environment variable.
type Config struct {
	WorkDir   string        `env:"WORKDIR" envDefault:"."`
	SpecPath  string        `env:"SPEC" envDefault:"openai.yaml"`
	OutputDir string        `env:"OUTPUT" envDefault:"openai"`
	Language  string        `env:"LANGUAGE" envDefault:"rust"`
	Image     string        `env:"IMAGE" envDefault:"openapitools/openapi-generator-cli:latest"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10m"`

	AdditionalProperties map[string]string `env:"ADDITIONAL_PROPERTIES" envKeyValSeparator:"="`
	GeneratorArgs        []string          `env:"GENERATOR_ARGS" envSeparator:" "`

	RunAsInvoker   bool       `env:"RUN_AS_INVOKER" envDefault:"true"`
	Escalation     Escalation `env:"ESCALATION" envDefault:"sudo"`
	EscalatorImage string     `env:"ESCALATOR_IMAGE" envDefault:"busybox:latest"`

	S3Region   string `env:"S3_REGION"`
	S3Endpoint string `env:"S3_ENDPOINT"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// Stats prints the run statistics to stdout once the run ends.
	Stats bool `env:"STATS"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SpecPath) == "" {
		return fmt.Errorf("missing specification: set --spec or %sSPEC", EnvPrefix)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("missing output directory: set --output or %sOUTPUT", EnvPrefix)
	}
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("missing target language: set --language or %sLANGUAGE", EnvPrefix)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if !c.Escalation.Valid() {
		return fmt.Errorf("unknown escalation %q: want %s, %s or %s", c.Escalation, EscalationSudo, EscalationContainer, EscalationNone)
	}
	return nil
}

// ParseProperty splits a key=value pair as accepted by --additional-property.
func ParseProperty(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("additional property must be key=value, got %q", pair)
	}
	return key, strings.TrimSpace(value), nil
}
