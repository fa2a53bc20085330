// Package registry implements the kind registry.
//
// Registration happens in two phases. During program initialization plugin
// packages add entries to a *Registry, either directly or through a Module.
// Freeze then ends the write phase and returns a *View, an immutable
// snapshot that is safe for concurrent reads without locking. Builders and
// the dispatcher only ever see the View.
//
// Entries carry descriptive locators (Ref, RuntimeRef) alongside concrete
// bindings: the spec schema, the runtime factory and the family table.
// Plugins register those bindings statically; nothing is resolved by name
// at run time. YAML manifests can declare entries whose bindings are looked
// up in a Catalog filled from plugin init functions.
package registry
