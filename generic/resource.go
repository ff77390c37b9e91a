/*
resource.go - Account type registration and lookup

PURPOSE:
  Provides a registry for domain packages to register the account types
  they book against. Storage keeps only the string ID, so the registry is
  how a row read back from SQL becomes a concrete type again.

HOW IT WORKS:
  1. Domain packages define their ResourceType implementations
  2. They register them in init()
  3. Storage uses GetOrCreateResource when scanning rows

USAGE:
  // In deviation/category.go
  func init() {
      for _, c := range Categories() {
          generic.RegisterResource(c)
      }
  }

  r := generic.LookupResource("time_bank") // returns deviation.TimeBank

SEE ALSO:
  - types.go: ResourceType interface definition
  - deviation/category.go: The deviation account types
*/
package generic

import "sync"

// =============================================================================
// RESOURCE REGISTRY
// =============================================================================

var (
	resourceRegistry = make(map[string]ResourceType)
	registryMu       sync.RWMutex
)

// RegisterResource adds a resource type to the global registry.
func RegisterResource(r ResourceType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	resourceRegistry[r.ResourceID()] = r
}

// LookupResource finds a registered resource type by ID.
// Returns nil if not found.
func LookupResource(id string) ResourceType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return resourceRegistry[id]
}

// =============================================================================
// STRING RESOURCE - For testing and fallback
// =============================================================================

// StringResource is a simple string-based resource type.
type StringResource struct {
	ID     string
	Domain string
}

func (r StringResource) ResourceID() string     { return r.ID }
func (r StringResource) ResourceDomain() string { return r.Domain }

// NewStringResource creates a StringResource with "unknown" domain.
func NewStringResource(id string) StringResource {
	return StringResource{ID: id, Domain: "unknown"}
}

// GetOrCreateResource looks up a resource type, or creates a StringResource fallback.
// Use this in deserialization when the domain might not be loaded.
func GetOrCreateResource(id string) ResourceType {
	if r := LookupResource(id); r != nil {
		return r
	}
	return NewStringResource(id)
}
