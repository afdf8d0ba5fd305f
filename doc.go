// Package imgio dispatches image I/O requests to format backends.
//
// Given a resource (file path, byte buffer, open stream, URL, zip member, or
// the ReturnBytes sentinel) and a read/write intent, Open selects a capable
// backend plugin and returns it as a uniform Backend value supporting
// Read, Write, Iter, Metadata, Properties, and Close.
//
// The library does no decoding itself. Backends wrap concrete codecs and
// register themselves in a Registry; Open probes registered plugins in
// priority order by attempting construction, where a constructor returning
// ErrCannotHandle means "try the next candidate" and any other error aborts
// resolution.
//
// # Basic usage
//
//	import (
//	    "github.com/ironsheep/imgio"
//	    _ "github.com/ironsheep/imgio/plugins/all"
//	)
//
//	backend, err := imgio.Open("photo.png", imgio.ModeRead,
//	    imgio.WithPlugin(".png"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	img, err := backend.Read(0, nil)
//
// Automatic search (no WithPlugin) defaults to legacy-contract plugins for
// compatibility; pass WithLegacyOnly(false) to let modern plugins compete,
// or force one by name or extension as above.
//
// # Ownership
//
// Open hands the constructed Request to exactly one backend, which owns it
// for its whole lifetime and releases it from Close. The one documented
// exception is LegacyAdapter.Close, which deliberately does not finish the
// request; see LegacyAdapter.
package imgio
