package cache

// ConfigError represents a configuration error raised while building a cache.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

func missingCapability(name string) *ConfigError {
	return &ConfigError{
		Field:   "provider",
		Message: "must respond to " + name + " in order to be used as a caching interface",
	}
}
