package config

import "fmt"

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at first error).
func (v *Validator) ValidateAll() error {
	// Validate in order: queue → services → LLM providers → defaults.
	// Defaults validation references the other registries, so it runs last.

	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}

	if err := v.validateServices(); err != nil {
		return fmt.Errorf("service validation failed: %w", err)
	}

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}

	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentTasks < 1 {
		return fmt.Errorf("max_concurrent_tasks must be at least 1, got %d", q.MaxConcurrentTasks)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", q.PollIntervalJitter, q.PollInterval)
	}
	if q.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive, got %v", q.TaskTimeout)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", q.OrphanThreshold)
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %v", q.HeartbeatInterval)
	}
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be less than orphan_threshold to prevent false orphan detection, got heartbeat=%v threshold=%v", q.HeartbeatInterval, q.OrphanThreshold)
	}

	return nil
}

func (v *Validator) validateServices() error {
	for name, svc := range v.cfg.ServiceRegistry.GetAll() {
		if !svc.Transport.Type.IsValid() {
			return NewValidationError("service", name, "transport.type",
				fmt.Errorf("invalid transport type '%s'", svc.Transport.Type))
		}

		switch svc.Transport.Type {
		case TransportTypeStdio:
			if svc.Transport.Command == "" {
				return NewValidationError("service", name, "transport.command",
					fmt.Errorf("command is required for stdio transport"))
			}
		case TransportTypeHTTP, TransportTypeSSE:
			if svc.Transport.URL == "" {
				return NewValidationError("service", name, "transport.url",
					fmt.Errorf("url is required for %s transport", svc.Transport.Type))
			}
		}

		if svc.DataMasking != nil && svc.DataMasking.Enabled {
			if err := v.validateMaskingConfig(svc.DataMasking, "service", name); err != nil {
				return err
			}
		}

		if svc.MaxConnectionsPerUser < 0 {
			return NewValidationError("service", name, "max_connections_per_user",
				fmt.Errorf("must be non-negative, got %d", svc.MaxConnectionsPerUser))
		}
	}

	return nil
}

func (v *Validator) validateMaskingConfig(m *MaskingConfig, component, id string) error {
	builtin := GetBuiltinConfig()
	for _, group := range m.PatternGroups {
		if _, exists := builtin.PatternGroups[group]; exists {
			continue
		}
		return NewValidationError(component, id, "data_masking.pattern_groups",
			fmt.Errorf("pattern group '%s' not found in built-in groups", group))
	}
	for i, p := range m.CustomPatterns {
		if p.Pattern == "" {
			return NewValidationError(component, id, fmt.Sprintf("data_masking.custom_patterns[%d].pattern", i),
				fmt.Errorf("pattern is required"))
		}
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type",
				fmt.Errorf("invalid provider type '%s'", provider.Type))
		}
		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model",
				fmt.Errorf("model is required"))
		}
		if provider.MaxToolResultTokens < 1000 {
			return NewValidationError("llm_provider", name, "max_tool_result_tokens",
				fmt.Errorf("must be at least 1000, got %d", provider.MaxToolResultTokens))
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	defaults := v.cfg.Defaults
	if defaults == nil {
		return nil
	}

	if defaults.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(defaults.LLMProvider) {
		return NewValidationError("defaults", "", "llm_provider",
			fmt.Errorf("LLM provider '%s' not found", defaults.LLMProvider))
	}

	if defaults.MaxIterationsCap < 1 {
		return NewValidationError("defaults", "", "max_iterations_cap",
			fmt.Errorf("must be at least 1, got %d", defaults.MaxIterationsCap))
	}

	if defaults.MaxRetries < 0 {
		return NewValidationError("defaults", "", "max_retries",
			fmt.Errorf("must be non-negative, got %d", defaults.MaxRetries))
	}

	return nil
}
