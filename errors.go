package firm

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrConfiguration indicates an invalid type or property registration.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMissingAccessor indicates a property has no getter.
	ErrMissingAccessor = errors.New("missing accessor")

	// ErrSecurity indicates serialized data named a type that may not be constructed.
	ErrSecurity = errors.New("type not allowed")

	// ErrCorruptData indicates serialized data is malformed or inconsistent.
	ErrCorruptData = errors.New("corrupt data")

	// ErrDuplicateAnchor indicates an object was anchored twice in one dump.
	ErrDuplicateAnchor = errors.New("duplicate anchor")

	// ErrUnknownFormat indicates no engine is registered for a format name.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrDuplicateFormat indicates an engine is already registered for a format name.
	ErrDuplicateFormat = errors.New("duplicate format")

	// ErrUnsupportedType indicates a value of a type that cannot be serialized.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrDepthExceeded indicates the object graph nests deeper than MaxDepth.
	ErrDepthExceeded = errors.New("max depth exceeded")

	// ErrUnmarshal indicates an engine failed to parse input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates an engine failed to render output data.
	ErrMarshal = errors.New("marshal failed")
)

// ConfigError represents a registration error.
// It wraps ErrConfiguration with the type and property involved.
type ConfigError struct {
	Type     string // Type name being registered
	Property string // Property id, if the error concerns a single property
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("%s: %s (type %s, property %s)", ErrConfiguration.Error(), e.Reason, e.Type, e.Property)
	}
	return fmt.Sprintf("%s: %s (type %s)", ErrConfiguration.Error(), e.Reason, e.Type)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// AccessError represents a property whose getter could not be resolved.
type AccessError struct {
	Type     string
	Property string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: no getter for property %s of %s", ErrMissingAccessor.Error(), e.Property, e.Type)
}

func (e *AccessError) Unwrap() error {
	return ErrMissingAccessor
}

// SecurityError represents a load that named a type outside the allowed set.
type SecurityError struct {
	TypeName string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %q", ErrSecurity.Error(), e.TypeName)
}

func (e *SecurityError) Unwrap() error {
	return ErrSecurity
}

// CorruptDataError represents malformed or inconsistent serialized data.
type CorruptDataError struct {
	Path   string // Location in the document, if known
	Reason string
	Cause  error
}

func (e *CorruptDataError) Error() string {
	msg := ErrCorruptData.Error() + ": " + e.Reason
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CorruptDataError) Unwrap() error {
	return ErrCorruptData
}

// AnchorError represents an object registered as an anchor more than once.
type AnchorError struct {
	TypeName string
	ID       int
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("%s: %s already anchored as %d", ErrDuplicateAnchor.Error(), e.TypeName, e.ID)
}

func (e *AnchorError) Unwrap() error {
	return ErrDuplicateAnchor
}

// CodecError represents a marshal/unmarshal error raised by an engine.
type CodecError struct {
	Err    error  // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	Format string // Engine format name
	Cause  error  // Original error from the engine
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Format, e.Err.Error(), e.Cause)
	}
	return fmt.Sprintf("%s %s", e.Format, e.Err.Error())
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// newConfigError creates a ConfigError for a type or one of its properties.
func newConfigError(typeName, property, reason string) error {
	return &ConfigError{
		Type:     typeName,
		Property: property,
		Reason:   reason,
	}
}

// newCorruptError creates a CorruptDataError.
func newCorruptError(path, reason string, cause error) error {
	return &CorruptDataError{
		Path:   path,
		Reason: reason,
		Cause:  cause,
	}
}

// NewCorruptError creates a CorruptDataError for engines reporting a
// structurally valid but semantically malformed document.
func NewCorruptError(reason string, cause error) error {
	return newCorruptError("", reason, cause)
}

// newCodecError creates a CodecError for marshal/unmarshal failures.
func newCodecError(sentinel error, format string, cause error) error {
	return &CodecError{
		Err:    sentinel,
		Format: format,
		Cause:  cause,
	}
}
