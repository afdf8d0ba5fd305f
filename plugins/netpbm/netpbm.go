// Package netpbm implements the PPM/PGM/PBM family through the legacy
// two-phase plugin contract: a Format with CanRead/CanWrite predicates and
// separately obtained reader/writer helpers. The dispatch core bridges it
// into the modern Backend contract via imgio.LegacyAdapter, which makes
// this package the reference exercise for that path.
//
// Netpbm streams may hold several concatenated images; the reader addresses
// them by index and the writer appends.
package netpbm

import (
	"bytes"
	"strings"

	"github.com/ironsheep/imgio"
)

// Plugin names. The raw variant emits binary rasters (P4/P5/P6), the plain
// variant ASCII ones (P1/P2/P3); both read every variant.
const (
	PluginName      = "netpbm"
	PlainPluginName = "netpbm-plain"
)

func init() {
	imgio.MustRegisterPlugin(&imgio.PluginConfig{
		Name:          PluginName,
		Summary:       "PPM, PGM and PBM (raw rasters)",
		LegacyFactory: func() imgio.LegacyFormat { return &Format{} },
	})
	imgio.MustRegisterPlugin(&imgio.PluginConfig{
		Name:          PlainPluginName,
		Summary:       "PPM, PGM and PBM (plain ASCII rasters)",
		LegacyFactory: func() imgio.LegacyFormat { return &Format{plain: true} },
	})
}

// Format is the legacy format descriptor for the netpbm family.
type Format struct {
	plain bool
}

var _ imgio.LegacyFormat = (*Format)(nil)

func (f *Format) Name() string {
	if f.plain {
		return PlainPluginName
	}
	return PluginName
}

func (f *Format) Description() string {
	if f.plain {
		return "netpbm family, plain ASCII output"
	}
	return "netpbm family, raw binary output"
}

func (f *Format) Extensions() []string {
	return []string{"ppm", "pgm", "pbm", "pnm"}
}

// Modes: single and multiple images (concatenated streams).
func (f *Format) Modes() string { return "iI" }

// CanRead answers the two-phase capability probe by checking the stream's
// magic number. Any error obtaining the prefix means "cannot read".
func (f *Format) CanRead(req *imgio.Request) bool {
	if !req.Mode().IsRead() {
		return false
	}
	head, err := req.PeekBytes(0)
	if err != nil || len(head) < 2 {
		return false
	}
	return head[0] == 'P' && head[1] >= '1' && head[1] <= '6'
}

// CanWrite accepts targets whose extension belongs to the netpbm family.
func (f *Format) CanWrite(req *imgio.Request) bool {
	if !req.Mode().IsWrite() {
		return false
	}
	ext := req.ExtensionHint()
	for _, e := range f.Extensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// Reader returns the index-addressable decoder for the stream.
func (f *Format) Reader(req *imgio.Request, _ imgio.Options) (imgio.LegacyReader, error) {
	return newReader(req)
}

// Writer returns the appending encoder. The option "plain" overrides the
// format variant's raster encoding.
func (f *Format) Writer(req *imgio.Request, opts imgio.Options) (imgio.LegacyWriter, error) {
	plain := f.plain
	if opts != nil {
		plain = opts.Bool("plain", plain)
	}
	return newWriter(req, plain)
}

// magicFor maps channel count and encoding to a netpbm magic number.
func magicFor(channels int, maxval int, plain bool) string {
	switch {
	case channels == 3 && plain:
		return "P3"
	case channels == 3:
		return "P6"
	case maxval == 1 && plain:
		return "P1"
	case maxval == 1:
		return "P4"
	case plain:
		return "P2"
	default:
		return "P5"
	}
}

// variantName returns a human label for metadata.
func variantName(magic string) string {
	switch magic {
	case "P1", "P4":
		return "bitmap"
	case "P2", "P5":
		return "graymap"
	case "P3", "P6":
		return "pixmap"
	}
	return "unknown"
}

// isPlainMagic reports whether the magic denotes an ASCII raster.
func isPlainMagic(magic []byte) bool {
	return len(magic) == 2 && magic[0] == 'P' && bytes.ContainsAny(magic[1:], "123")
}

// extVariant picks the output channel layout implied by a target extension.
// Returns the required channel count (0 = follow the input image).
func extVariant(ext string) int {
	switch strings.ToLower(ext) {
	case "ppm":
		return 3
	case "pgm", "pbm":
		return 1
	}
	return 0
}
