package stow

import "github.com/Masterminds/semver/v3"

// Component identifies a storable, typed record kind. Two components
// name the same storable resource iff both name and version match.
//
// Implementations return their identity as constants from value
// receivers; the engine treats both as opaque and never generates
// them. Names must satisfy the identifier rules enforced by the SQL
// backends: an ASCII letter followed by letters, digits or
// underscores.
type Component interface {
	ComponentName() string
	ComponentVersion() *semver.Version
}

// SerializedComponent is the backend-neutral transport form of a
// component value: its identity plus an opaque payload produced by a
// Format.
type SerializedComponent struct {
	Name     string
	Version  *semver.Version
	Contents []byte
}

// ExtractionDescriptor names one resource to read, without carrying
// data. With Entity set it is the entity pseudo-descriptor, which
// requires no storage lookup and resolves to the requesting entity's
// own identifier.
type ExtractionDescriptor struct {
	Entity  bool
	Name    string
	Version *semver.Version
}

// ExtractComponent describes a read of one component identity.
func ExtractComponent(name string, version *semver.Version) ExtractionDescriptor {
	return ExtractionDescriptor{Name: name, Version: version}
}

// ExtractEntity describes the entity pseudo-component.
func ExtractEntity() ExtractionDescriptor {
	return ExtractionDescriptor{Entity: true}
}

// Describe returns the extraction descriptor for a component value's
// identity.
func Describe(c Component) ExtractionDescriptor {
	return ExtractionDescriptor{Name: c.ComponentName(), Version: c.ComponentVersion()}
}
