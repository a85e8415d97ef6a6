package strata

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Codec configuration
// -----------------------------------------------------------------------------

// CodecConfig is one codec stage descriptor as it appears in an array's
// metadata document: a name plus free-form configuration.
type CodecConfig struct {
	// Name is the codec identifier.
	Name string `json:"name"`

	// Configuration holds codec-specific settings.
	Configuration map[string]any `json:"configuration,omitempty"`
}

// newCodecFromConfig resolves a stage descriptor to a codec instance.
func newCodecFromConfig(cfg CodecConfig) (Codec, error) {
	switch cfg.Name {
	case "bytes":
		return newBytesCodec(cfg.Configuration)
	case "blosc":
		return newBloscCodec(cfg.Configuration)
	case "gzip":
		return newGzipCodec(cfg.Configuration)
	case "zstd":
		return newZstdCodec(cfg.Configuration)
	default:
		return nil, fmt.Errorf("unknown codec: %q", cfg.Name)
	}
}

// stringOption reads a string configuration value with a default.
func stringOption(cfg map[string]any, key, fallback string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("configuration %q: expected string, got %T", key, v)
	}
	return s, nil
}

// intOption reads an integer configuration value with a default. JSON
// decoding yields float64 for numbers; both forms are accepted.
func intOption(cfg map[string]any, key string, fallback int) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("configuration %q: expected integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("configuration %q: expected integer, got %T", key, v)
	}
}
