package config

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/quasar/pkg/errors"
)

// EnvPrefix prefixes environment variables that override properties.
// The property "stripe.ticker" is read from QUASAR_STRIPE_TICKER.
const EnvPrefix = "QUASAR"

// Properties resolves flat dotted properties such as "stripe.ticker".
// Values come from explicit Set calls, then the environment, then defaults.
type Properties struct {
	v *viper.Viper
}

// NewProperties returns an empty property set bound to the environment.
func NewProperties() *Properties {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Properties{v: v}
}

// Properties exposes the legacy per-contract stripe counts of the config
// as "stripe.<contract>" defaults.
func (c *Config) Properties() *Properties {
	p := NewProperties()
	for contract, n := range c.Collector.Stripes {
		p.SetDefault(StripeProperty(contract), n)
	}
	return p
}

// StripeProperty returns the property holding the stripe count of a contract.
func StripeProperty(contract string) string {
	return "stripe." + strings.ToLower(contract)
}

func (p *Properties) Set(key string, value interface{}) {
	p.v.Set(key, value)
}

func (p *Properties) SetDefault(key string, value interface{}) {
	p.v.SetDefault(key, value)
}

// GetInt returns the integer value of key, or 0 when unset. A value that
// is not a number is a config error.
func (p *Properties) GetInt(key string) (int, error) {
	raw := p.v.Get(key)
	if raw == nil {
		return 0, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, "property "+key+" is not an integer").
			WithDetail("key", key).
			WithDetail("value", raw)
	}
	return n, nil
}

func (p *Properties) GetString(key string) string {
	return p.v.GetString(key)
}

func (p *Properties) IsSet(key string) bool {
	return p.v.IsSet(key)
}
