package config

// Config is the umbrella configuration object that encapsulates all
// registries and defaults. This is the primary object returned by
// Initialize() and used throughout the application.
type Config struct {
	configDir string

	Defaults          *Defaults
	ComplexityBudgets *ComplexityBudgets
	Queue             *QueueConfig

	ServiceRegistry     *ServiceRegistry
	LLMProviderRegistry *LLMProviderRegistry
}

// Stats contains statistics about loaded configuration.
type Stats struct {
	Services     int
	LLMProviders int
}

// Stats returns configuration statistics for logging/health reporting.
func (c *Config) Stats() Stats {
	return Stats{
		Services:     len(c.ServiceRegistry.GetAll()),
		LLMProviders: len(c.LLMProviderRegistry.GetAll()),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetService retrieves a service configuration by name.
func (c *Config) GetService(name string) (*ServiceConfig, error) {
	return c.ServiceRegistry.Get(name)
}

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
