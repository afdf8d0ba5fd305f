package imgio

import (
	"errors"
	"fmt"
	"strings"
)

// openConfig collects Open's optional parameters.
type openConfig struct {
	plugin     string
	formatHint string
	legacyOnly bool
	opts       Options
	registry   *Registry
}

// OpenOption adjusts how Open resolves a backend.
type OpenOption func(*openConfig)

// WithPlugin forces a specific plugin by name, or by extension ("png" or
// ".png"): the extension's most-preferred registered plugin is substituted
// and the matched extension is recorded as the request's format hint (unless
// the caller set one with WithFormatHint), so write-mode backends targeting
// a sentinel or stream still know the intended format. When the forced
// plugin cannot handle the resource the whole Open call fails; there is no
// fallback to automatic search.
func WithPlugin(name string) OpenOption {
	return func(c *openConfig) { c.plugin = name }
}

// WithFormatHint biases capability checks with an extension-like hint
// without forcing a particular plugin.
func WithFormatHint(ext string) OpenOption {
	return func(c *openConfig) { c.formatHint = ext }
}

// WithLegacyOnly controls whether automatic search is restricted to
// legacy-contract plugins. The default is true, preserving the behavior of
// the transition period this registry models; pass false to let modern
// plugins participate in automatic search. Explicitly named plugins are
// never affected.
func WithLegacyOnly(legacyOnly bool) OpenOption {
	return func(c *openConfig) { c.legacyOnly = legacyOnly }
}

// WithOptions passes backend-specific parameters through to the chosen
// plugin's constructor.
func WithOptions(opts Options) OpenOption {
	return func(c *openConfig) { c.opts = opts }
}

// WithRegistry resolves against a specific registry instead of the
// process-wide default. Mainly for tests.
func WithRegistry(r *Registry) OpenOption {
	return func(c *openConfig) { c.registry = r }
}

// Open builds a Request for resource and returns the first backend that
// accepts it.
//
// With WithPlugin the named plugin (or the extension's preferred plugin) is
// tried alone and any failure is final. Otherwise registered plugins are
// probed in registration order; a constructor error matching ErrCannotHandle
// advances to the next candidate, the first successful construction wins,
// and any other error aborts resolution immediately. There is no scoring and
// no probe timeout: a candidate that blocks, blocks the call.
//
// On every failure path the Request is finished before the error returns, so
// no temp files or handles leak. On success the returned backend owns the
// Request exclusively; Open retains no reference.
func Open(resource any, mode Mode, options ...OpenOption) (Backend, error) {
	cfg := openConfig{legacyOnly: true, registry: defaultRegistry}
	for _, opt := range options {
		opt(&cfg)
	}

	req, err := NewRequest(resource, mode)
	if err != nil {
		return nil, err
	}
	if cfg.formatHint != "" {
		req.SetFormatHint(cfg.formatHint)
	}

	if cfg.plugin != "" {
		return openExplicit(req, &cfg)
	}
	return openSearch(req, &cfg)
}

// openExplicit resolves a caller-forced plugin name or extension.
func openExplicit(req *Request, cfg *openConfig) (Backend, error) {
	pc, nameErr := cfg.registry.LookupByName(cfg.plugin)
	if nameErr != nil {
		var ext string
		var extErr error
		pc, ext, extErr = firstForExtension(cfg.registry, cfg.plugin)
		if extErr != nil {
			req.Finish()
			// A dotless spec reads as a plugin name; surface the name
			// lookup's error for it rather than the extension one.
			if strings.Contains(cfg.plugin, ".") {
				return nil, extErr
			}
			return nil, nameErr
		}
		if req.FormatHint() == "" {
			req.SetFormatHint(ext)
		}
	}

	backend, err := pc.newBackend(req, cfg.opts)
	if err != nil {
		req.Finish()
		return nil, fmt.Errorf("could not open %q with requested plugin %q: %w",
			req.Filename(), pc.Name, err)
	}
	return backend, nil
}

// firstForExtension maps an extension-like string (with or without leading
// dot, or a name carrying a trailing extension suffix) to the extension's
// most-preferred registered plugin, returning the extension that matched.
func firstForExtension(reg *Registry, s string) (*PluginConfig, string, error) {
	ext := normalizeName(s)
	candidates, err := reg.LookupByExtension(s)
	if err != nil && strings.Contains(s, ".") {
		// "photo.png" style: retry with the trailing suffix.
		suffix := s[strings.LastIndex(s, ".")+1:]
		ext = normalizeName(suffix)
		candidates, err = reg.LookupByExtension(suffix)
	}
	if err != nil {
		return nil, "", err
	}
	return candidates[0], ext, nil
}

// openSearch probes registered plugins in order until one accepts.
func openSearch(req *Request, cfg *openConfig) (Backend, error) {
	tried := 0
	for _, pc := range cfg.registry.Plugins() {
		if cfg.legacyOnly && !pc.IsLegacy() {
			continue
		}
		tried++
		backend, err := pc.newBackend(req, cfg.opts)
		if err == nil {
			logger.Load().WithField("plugin", pc.Name).Debug("backend accepted resource")
			return backend, nil
		}
		if errors.Is(err, ErrCannotHandle) {
			logger.Load().WithField("plugin", pc.Name).WithError(err).Debug("backend rejected resource")
			continue
		}
		// Not an incapability signal: a real failure. Do not keep probing
		// less appropriate candidates behind a genuine error.
		req.Finish()
		return nil, fmt.Errorf("plugin %q failed while opening %q: %w", pc.Name, req.Filename(), err)
	}

	req.Finish()
	return nil, fmt.Errorf("%w: resource %q, mode %s (%d candidates tried)",
		ErrNoBackend, req.Filename(), req.Mode(), tried)
}
