package params

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration covers missing or malformed configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrData covers unreadable datasets, malformed rows and unknown labels.
	ErrData = errors.New("data error")
	// ErrEmbeddingUnavailable is returned when pretrained vectors cannot be loaded.
	ErrEmbeddingUnavailable = errors.New("pretrained embedding unavailable")
)

// ConfigError describes a configuration profile that cannot be used.
type ConfigError struct {
	Profile string
	Missing []string
	Reason  string
	cause   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Profile != "" {
		fmt.Fprintf(&b, " profile %q", e.Profile)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing keys %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigError) Unwrap() error { return e.cause }

// EmbeddingUnavailableError reports a pretrained vector source that could not
// be opened. It matches both ErrEmbeddingUnavailable and ErrConfiguration.
type EmbeddingUnavailableError struct {
	Name  string
	Dir   string
	cause error
}

func NewEmbeddingUnavailable(name, dir string, cause error) *EmbeddingUnavailableError {
	return &EmbeddingUnavailableError{Name: name, Dir: dir, cause: cause}
}

func (e *EmbeddingUnavailableError) Error() string {
	msg := fmt.Sprintf("pretrained embedding %q unavailable in %s", e.Name, e.Dir)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *EmbeddingUnavailableError) Is(target error) bool {
	return target == ErrEmbeddingUnavailable || target == ErrConfiguration
}

func (e *EmbeddingUnavailableError) Unwrap() error { return e.cause }

// DataErrorf wraps a formatted message with ErrData.
func DataErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrData, fmt.Sprintf(format, args...))
}

// ConfigErrorf wraps a formatted message with ErrConfiguration.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
