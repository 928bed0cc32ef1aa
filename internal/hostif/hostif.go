// Package hostif defines the narrow interfaces the CIB bridge's Lifecycle
// Controller is built against, so the core can be exercised without the
// DAQ module host that ultimately owns command dispatch and the
// downstream sinks.
package hostif

import (
	"context"
	"encoding/json"
)

// CommandHost is the minimal surface the bridge needs from a DAQ module
// host: register a named command handler, and publish a named info
// record for the host's operational-monitoring collector. Kept in its
// own package (rather than the root package) so neither side of the
// registration needs to import the other's concrete types.
type CommandHost interface {
	RegisterCommand(name string, handler func(ctx context.Context, args json.RawMessage) error)
	PublishInfo(name string, snapshot any)
}
