package imgio

import (
	"fmt"
	"strings"
	"sync"
)

// PluginConfig describes one registered backend: how to name it and how to
// construct it. Exactly one of Factory (modern contract) or LegacyFactory
// (two-phase legacy contract, bridged through LegacyAdapter) is set.
//
// Construction is deferred: nothing about a backend is instantiated until it
// is first probed, so registering a plugin whose codec dependencies are
// broken costs nothing unless that plugin is actually tried.
type PluginConfig struct {
	// Name is the canonical plugin identifier. Lookup is case-insensitive.
	Name string

	// Summary is a one-line description shown by tooling.
	Summary string

	// Factory builds a modern-contract backend.
	Factory BackendFactory

	// LegacyFactory builds the legacy format object. It runs at most once
	// per config; the instance is memoized for the process lifetime.
	LegacyFactory func() LegacyFormat

	legacyOnce sync.Once
	legacy     LegacyFormat
}

// IsLegacy reports whether this plugin follows the legacy two-phase contract
// and therefore needs LegacyAdapter wrapping.
func (c *PluginConfig) IsLegacy() bool { return c.LegacyFactory != nil }

// legacyFormat returns the memoized legacy format instance.
func (c *PluginConfig) legacyFormat() LegacyFormat {
	c.legacyOnce.Do(func() { c.legacy = c.LegacyFactory() })
	return c.legacy
}

// newBackend attempts construction against req, wrapping legacy plugins in
// a LegacyAdapter. This is the capability probe: an error matching
// ErrCannotHandle means "not my format".
func (c *PluginConfig) newBackend(req *Request, opts Options) (Backend, error) {
	if c.IsLegacy() {
		return NewLegacyAdapter(req, c.legacyFormat())
	}
	if c.Factory == nil {
		return nil, fmt.Errorf("plugin %q has no factory", c.Name)
	}
	return c.Factory(req, opts)
}

// FileExtension associates one file extension with an ordered priority list
// of plugin names. Several entries may share an extension (format variants
// with different preferred backends); lookups preserve registration order.
type FileExtension struct {
	// Extension is the key, lower-case and without dot ("png").
	Extension string

	// Priority lists plugin names able to handle the extension, most
	// preferred first.
	Priority []string

	// Documentation-only fields.
	Name         string
	Description  string
	ExternalLink string
}

// Registry is the ordered catalog of plugins and extensions that Open
// resolves against. It is populated once at process start (plugins register
// from init functions, the built-in extension table is compiled in) and is
// read-only during normal operation; the mutex exists so concurrent Open
// calls stay safe against the bulk Snapshot/Restore used for test isolation.
type Registry struct {
	mu     sync.RWMutex
	order  []*PluginConfig
	byName map[string]*PluginConfig
	exts   []*FileExtension
	byExt  map[string][]*FileExtension
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*PluginConfig),
		byExt:  make(map[string][]*FileExtension),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
}

// RegisterPlugin adds a plugin to the end of the search order. Names are
// unique; registering a duplicate is an error.
func (r *Registry) RegisterPlugin(cfg *PluginConfig) error {
	if cfg == nil || cfg.Name == "" {
		return fmt.Errorf("plugin config must have a name")
	}
	if cfg.Factory == nil && cfg.LegacyFactory == nil {
		return fmt.Errorf("plugin %q must have a factory", cfg.Name)
	}
	key := normalizeName(cfg.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[key]; dup {
		return fmt.Errorf("plugin %q already registered", cfg.Name)
	}
	r.byName[key] = cfg
	r.order = append(r.order, cfg)
	return nil
}

// RegisterExtension appends an extension entry, preserving registration
// order among entries sharing the same extension.
func (r *Registry) RegisterExtension(ext *FileExtension) error {
	if ext == nil || ext.Extension == "" {
		return fmt.Errorf("extension entry must have an extension")
	}
	key := normalizeName(ext.Extension)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exts = append(r.exts, ext)
	r.byExt[key] = append(r.byExt[key], ext)
	return nil
}

// LookupByName finds a plugin by its canonical name. Matching is
// case-insensitive and tolerates a leading dot.
func (r *Registry) LookupByName(name string) (*PluginConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byName[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownPlugin)
	}
	return cfg, nil
}

// LookupByExtension returns the registered plugins able to handle ext, most
// preferred first. Matching is case- and dot-insensitive. When several
// extension entries share the key their priority lists are concatenated in
// registration order, duplicate plugin names removed keeping the first
// occurrence's position. Priority names without a registered plugin are
// skipped (their backend package was simply not linked in).
func (r *Registry) LookupByExtension(ext string) ([]*PluginConfig, error) {
	key := normalizeName(ext)
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.byExt[key]
	if len(entries) == 0 {
		return nil, fmt.Errorf("extension %q: %w", ext, ErrUnknownPlugin)
	}
	seen := make(map[string]bool)
	var out []*PluginConfig
	for _, e := range entries {
		for _, name := range e.Priority {
			nk := normalizeName(name)
			if seen[nk] {
				continue
			}
			seen[nk] = true
			if cfg, ok := r.byName[nk]; ok {
				out = append(out, cfg)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("extension %q has no registered backend: %w", ext, ErrUnknownPlugin)
	}
	return out, nil
}

// Plugins returns the plugin catalog in search order.
func (r *Registry) Plugins() []*PluginConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PluginConfig, len(r.order))
	copy(out, r.order)
	return out
}

// Extensions returns the extension entries in registration order.
func (r *Registry) Extensions() []*FileExtension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FileExtension, len(r.exts))
	copy(out, r.exts)
	return out
}

// Reorder moves the named plugins to the front of the search order, in the
// given order, leaving the relative order of everything else untouched.
// Unknown names are ignored. This is the explicit replacement for ambient
// "format sort order" state: callers that want to bias automatic selection
// say so on the registry they resolve against.
func (r *Registry) Reorder(preferred ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var front, rest []*PluginConfig
	picked := make(map[string]bool)
	for _, name := range preferred {
		if cfg, ok := r.byName[normalizeName(name)]; ok && !picked[normalizeName(name)] {
			front = append(front, cfg)
			picked[normalizeName(name)] = true
		}
	}
	for _, cfg := range r.order {
		if !picked[normalizeName(cfg.Name)] {
			rest = append(rest, cfg)
		}
	}
	r.order = append(front, rest...)
}

// RegistrySnapshot captures a registry's tables for later Restore. Used
// only for test isolation.
type RegistrySnapshot struct {
	order []*PluginConfig
	exts  []*FileExtension
}

// Snapshot captures the current tables.
func (r *Registry) Snapshot() *RegistrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := &RegistrySnapshot{
		order: make([]*PluginConfig, len(r.order)),
		exts:  make([]*FileExtension, len(r.exts)),
	}
	copy(s.order, r.order)
	copy(s.exts, r.exts)
	return s
}

// Restore bulk-replaces the registry's tables with a snapshot's.
func (r *Registry) Restore(s *RegistrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = make([]*PluginConfig, len(s.order))
	copy(r.order, s.order)
	r.byName = make(map[string]*PluginConfig, len(s.order))
	for _, cfg := range r.order {
		r.byName[normalizeName(cfg.Name)] = cfg
	}
	r.exts = make([]*FileExtension, len(s.exts))
	copy(r.exts, s.exts)
	r.byExt = make(map[string][]*FileExtension, len(s.exts))
	for _, e := range r.exts {
		key := normalizeName(e.Extension)
		r.byExt[key] = append(r.byExt[key], e)
	}
}

// defaultRegistry is the process-wide registry backing the package-level
// Register and Open functions.
var defaultRegistry = newDefaultRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// RegisterPlugin registers into the default registry.
func RegisterPlugin(cfg *PluginConfig) error {
	return defaultRegistry.RegisterPlugin(cfg)
}

// MustRegisterPlugin registers into the default registry and panics on
// error. Intended for use from plugin package init functions, where a
// failure is a programming error.
func MustRegisterPlugin(cfg *PluginConfig) {
	if err := defaultRegistry.RegisterPlugin(cfg); err != nil {
		panic(err)
	}
}
