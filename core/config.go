package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultSubscribeDomainPattern matches AWS SNS regional endpoints. Hosts
// outside this pattern are refused before any confirmation request is made.
const DefaultSubscribeDomainPattern = `sns\.[a-z0-9\-]+\.amazonaws\.com$`

type SubscribeConfig struct {
	DomainPattern string `koanf:"domain_pattern" mapstructure:"domain_pattern"`
}

type CertificatesConfig struct {
	// HostPattern optionally gates the SigningCertURL host before a fetch.
	// Empty disables the gate, matching the permissive upstream contract.
	HostPattern string        `koanf:"host_pattern" mapstructure:"host_pattern"`
	CacheTTL    time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type TimestampsConfig struct {
	TimezoneAware bool `koanf:"timezone_aware" mapstructure:"timezone_aware"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Subscribe    SubscribeConfig    `koanf:"subscribe" mapstructure:"subscribe"`
	Certificates CertificatesConfig `koanf:"certificates" mapstructure:"certificates"`
	Timestamps   TimestampsConfig   `koanf:"timestamps" mapstructure:"timestamps"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "sns-webhook",
		Subscribe: SubscribeConfig{
			DomainPattern: DefaultSubscribeDomainPattern,
		},
		Certificates: CertificatesConfig{
			CacheTTL: 6 * time.Hour,
		},
		Timestamps: TimestampsConfig{
			TimezoneAware: true,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Subscribe.DomainPattern) == "" {
		return fmt.Errorf("core: subscribe.domain_pattern is required")
	}
	if _, err := regexp.Compile(c.Subscribe.DomainPattern); err != nil {
		return fmt.Errorf("core: subscribe.domain_pattern is invalid: %w", err)
	}
	if pattern := strings.TrimSpace(c.Certificates.HostPattern); pattern != "" {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("core: certificates.host_pattern is invalid: %w", err)
		}
	}
	if c.Certificates.CacheTTL < 0 {
		return fmt.Errorf("core: certificates.cache_ttl must not be negative")
	}
	return nil
}
