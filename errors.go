package imgio

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the dispatch core. Match them with errors.Is;
// the concrete error values carry additional context via wrapping.
var (
	// ErrCannotHandle is the incapability signal. A backend factory returns
	// it (wrapped) to mean "not my format, ask someone else". During
	// automatic search it advances the probe loop; for an explicitly
	// requested plugin it fails the whole Open call. Any other error from a
	// factory is treated as a real failure and aborts resolution.
	ErrCannotHandle = errors.New("backend cannot handle this resource")

	// ErrUnknownPlugin reports an explicitly requested plugin or extension
	// that matches nothing in the registry.
	ErrUnknownPlugin = errors.New("not a registered plugin name or extension")

	// ErrNoBackend reports that automatic search exhausted every eligible
	// candidate without any accepting the resource.
	ErrNoBackend = errors.New("no registered backend accepted the resource")

	// ErrUnsupportedResource reports a resource reference whose type or
	// shape cannot be classified.
	ErrUnsupportedResource = errors.New("unsupported resource")

	// ErrOutOfRange reports an image index past the end of a resource.
	ErrOutOfRange = errors.New("image index out of range")

	// ErrNetworkDisabled reports a network-requiring step attempted while
	// IMGIO_NO_NETWORK is set.
	ErrNetworkDisabled = errors.New("network access disabled by IMGIO_NO_NETWORK")
)

// CannotHandlef builds an incapability signal with a reason, suitable for
// returning from a backend factory. The result matches ErrCannotHandle
// under errors.Is.
func CannotHandlef(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrCannotHandle)
}
