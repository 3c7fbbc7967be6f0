package analysis

// ValidationError is a rejected inbound request. Nothing has been sent
// upstream when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigError means the service itself is not able to run an analysis.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
