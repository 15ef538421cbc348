package sceneref

import (
	"github.com/jward/sceneref/internal/collect"
	"github.com/jward/sceneref/internal/graph"
	"github.com/jward/sceneref/internal/model"
)

// Public aliases for the internal types that appear in the Engine API.

type TypeMetadata = model.TypeMetadata
type TypeIdentity = model.TypeIdentity
type MemberDescriptor = model.MemberDescriptor
type MemberKind = model.MemberKind
type UsageRecord = model.UsageRecord
type Warning = model.Warning
type WarningKind = model.WarningKind
type Unit = collect.Unit
type Edge = graph.Edge

// Warning kinds.
const (
	ResolutionFailure       = model.ResolutionFailure
	IntrospectionFailure    = model.IntrospectionFailure
	DocumentOpenFailure     = model.DocumentOpenFailure
	TraversalFailure        = model.TraversalFailure
	CachePersistenceFailure = model.CachePersistenceFailure
)
