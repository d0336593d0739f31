package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate reports every invalid setting, keyed by its YAML path.
func (c *Config) Validate() error {
	//nolint:wrapcheck // validation.Errors already names each key
	return validation.Errors{
		"http":      c.HTTP.validate(),
		"database":  c.Database.validate(),
		"embedding": c.Embedding.validate(),
		"index":     c.Index.validate(),
		"search":    c.Search.validate(),
	}.Filter()
}

func (h HTTPConfig) validate() error {
	return validation.Errors{
		"port": validation.Validate(h.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	}.Filter()
}

func (d DatabaseConfig) validate() error {
	external := d.Driver == DriverRedis || d.Driver == DriverValkey
	return validation.Errors{
		"driver": validation.Validate(d.Driver, validation.Required, validation.In(DriverMemory, DriverRedis, DriverValkey)),
		"addrs":  validation.Validate(d.Addrs, validation.When(external, validation.Required)),
	}.Filter()
}

func (e EmbeddingConfig) validate() error {
	remote := e.Provider == ProviderOpenAI
	return validation.Errors{
		"provider":   validation.Validate(e.Provider, validation.Required, validation.In(ProviderOpenAI, ProviderHashing)),
		"base_url":   validation.Validate(e.BaseURL, validation.When(remote, validation.Required)),
		"model":      validation.Validate(e.Model, validation.When(remote, validation.Required)),
		"dimensions": validation.Validate(e.Dimensions, validation.Min(0)),
	}.Filter()
}

func (i IndexConfig) validate() error {
	return validation.Errors{
		"name":          validation.Validate(i.Name, validation.Required),
		"embed_retries": validation.Validate(i.EmbedRetries, validation.Min(0)),
	}.Filter()
}

func (s SearchConfig) validate() error {
	return validation.Errors{
		"max_top_k":     validation.Validate(s.MaxTopK, validation.Required, validation.Min(1)),
		"default_top_k": validation.Validate(s.DefaultTopK, validation.Required, validation.Max(s.MaxTopK)),
	}.Filter()
}
