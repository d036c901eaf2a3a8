package masking

import (
	"log/slog"

	"github.com/flowforge/orchestrator/pkg/config"
)

// Service applies data masking to MCP tool results before they are folded
// into the event stream or observation context. Created once at application
// startup (singleton). Thread-safe and stateless aside from compiled patterns.
type Service struct {
	registry               *config.ServiceRegistry
	patterns               map[string]*CompiledPattern // built-in + custom compiled patterns
	patternGroups          map[string][]string         // group name -> pattern names
	codeMaskers            map[string]Masker           // registered code-based maskers
	serviceCustomPatterns  map[string][]string          // service name -> custom pattern keys
}

// NewService creates a masking service with compiled patterns and registered maskers.
// All patterns are compiled eagerly at creation time. Invalid patterns are
// logged and skipped rather than failing startup.
func NewService(registry *config.ServiceRegistry) *Service {
	s := &Service{
		registry:              registry,
		patterns:              make(map[string]*CompiledPattern),
		patternGroups:         config.GetBuiltinConfig().PatternGroups,
		codeMaskers:           make(map[string]Masker),
		serviceCustomPatterns: make(map[string][]string),
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns()

	slog.Info("Masking service initialized",
		"builtin_patterns", len(config.GetBuiltinConfig().MaskingPatterns),
		"compiled_patterns", len(s.patterns))

	return s
}

// MaskToolResult applies service-specific masking to MCP tool result content.
// Returns masked content. On masking failure, returns a redaction notice
// (fail-closed — tool output may contain credentials or secrets).
func (s *Service) MaskToolResult(content string, serviceName string) string {
	if content == "" {
		return content
	}

	svcCfg, err := s.registry.Get(serviceName)
	if err != nil || svcCfg.DataMasking == nil || !svcCfg.DataMasking.Enabled {
		return content
	}

	resolved := s.resolvePatterns(svcCfg.DataMasking, serviceName)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		slog.Error("Masking failed, redacting content (fail-closed)",
			"service", serviceName, "error", err)
		return "[REDACTED: data masking failure - tool result could not be safely processed]"
	}

	return masked
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) (string, error) {
	masked := content

	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked, nil
}

// RegisterMasker registers a code-based masker by its name, making it
// available to services whose DataMasking.PatternGroups references it.
func (s *Service) RegisterMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
