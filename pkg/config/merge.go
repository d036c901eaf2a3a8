package config

// mergeServices merges built-in and user-defined MCP service configurations.
// User-defined services override built-in services with the same name.
func mergeServices(builtinServices map[string]ServiceConfig, userServices map[string]ServiceConfig) map[string]*ServiceConfig {
	result := make(map[string]*ServiceConfig, len(builtinServices)+len(userServices))

	for name, svc := range builtinServices {
		svcCopy := svc
		result[name] = &svcCopy
	}

	for name, userSvc := range userServices {
		svcCopy := userSvc
		result[name] = &svcCopy
	}

	return result
}

// mergeLLMProviders merges built-in and user-defined LLM provider configurations.
// User-defined providers override built-in providers with the same name.
func mergeLLMProviders(builtinProviders map[string]LLMProviderConfig, userProviders map[string]LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig, len(builtinProviders)+len(userProviders))

	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}

	for name, userProvider := range userProviders {
		providerCopy := userProvider
		result[name] = &providerCopy
	}

	return result
}
