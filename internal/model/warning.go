package model

import (
	"fmt"
	"log/slog"
)

// WarningKind classifies a recovered failure.
type WarningKind string

const (
	ResolutionFailure       WarningKind = "resolution"
	IntrospectionFailure    WarningKind = "introspection"
	DocumentOpenFailure     WarningKind = "document_open"
	TraversalFailure        WarningKind = "traversal"
	CachePersistenceFailure WarningKind = "cache_persistence"
)

// Warning records a failure that was recovered locally. Source names the
// unit, member, document or node the failure belongs to.
type Warning struct {
	Kind   WarningKind
	Source string
	Err    error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s: %v", w.Kind, w.Source, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// Log writes the warning to logger at Warn level. A nil logger is a no-op.
func (w Warning) Log(logger *slog.Logger, msg string) {
	if logger == nil {
		return
	}
	logger.Warn(msg,
		slog.String("kind", string(w.Kind)),
		slog.String("source", w.Source),
		slog.String("error", w.Err.Error()))
}
