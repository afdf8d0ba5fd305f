package imgio

// builtinExtensions is the compiled-in extension catalog: data, not dispatch
// code. Priority lists name plugins most-preferred first; names whose
// backend package is not linked into the binary are skipped at lookup time.
//
// Several entries may share an extension. The netpbm family deliberately
// has both a raw and a plain-text variant per extension so that lookups
// exercise the concatenate-and-dedupe rule.
var builtinExtensions = []*FileExtension{
	{
		Extension:    "png",
		Priority:     []string{"stdimage"},
		Name:         "Portable Network Graphics",
		ExternalLink: "https://www.w3.org/TR/png/",
	},
	{
		Extension: "jpg",
		Priority:  []string{"stdimage"},
		Name:      "Joint Photographic Experts Group",
	},
	{
		Extension: "jpeg",
		Priority:  []string{"stdimage"},
		Name:      "Joint Photographic Experts Group",
	},
	{
		Extension: "gif",
		Priority:  []string{"stdimage"},
		Name:      "Graphics Interchange Format",
	},
	{
		Extension:    "bmp",
		Priority:     []string{"ximage"},
		Name:         "Windows Bitmap",
		ExternalLink: "https://learn.microsoft.com/windows/win32/gdi/bitmap-storage",
	},
	{
		Extension: "tif",
		Priority:  []string{"ximage"},
		Name:      "Tagged Image File Format",
	},
	{
		Extension: "tiff",
		Priority:  []string{"ximage"},
		Name:      "Tagged Image File Format",
	},
	{
		Extension:    "webp",
		Priority:     []string{"ximage"},
		Name:         "WebP",
		Description:  "read-only",
		ExternalLink: "https://developers.google.com/speed/webp",
	},
	{
		Extension:   "ppm",
		Priority:    []string{"netpbm"},
		Name:        "Portable Pixmap (raw)",
		Description: "binary P6 variant",
	},
	{
		Extension:   "ppm",
		Priority:    []string{"netpbm-plain", "netpbm"},
		Name:        "Portable Pixmap (plain)",
		Description: "ASCII P3 variant",
	},
	{
		Extension: "pgm",
		Priority:  []string{"netpbm"},
		Name:      "Portable Graymap",
	},
	{
		Extension: "pbm",
		Priority:  []string{"netpbm"},
		Name:      "Portable Bitmap",
	},
	{
		Extension:   "pnm",
		Priority:    []string{"netpbm"},
		Name:        "Portable Anymap",
		Description: "umbrella extension for the netpbm family",
	},
}

// newDefaultRegistry builds the process-wide registry preloaded with the
// built-in extension table. Plugin configs arrive later, from the init
// functions of whichever backend packages the binary links in.
func newDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range builtinExtensions {
		if err := r.RegisterExtension(e); err != nil {
			panic(err)
		}
	}
	return r
}
