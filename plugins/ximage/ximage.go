// Package ximage is the modern-contract backend for TIFF, BMP and WebP,
// built on the golang.org/x/image codecs. TIFF and BMP support reading and
// writing; WebP is read-only.
package ximage

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/ironsheep/imgio"
)

// PluginName is the registry identifier of this backend.
const PluginName = "ximage"

func init() {
	imgio.MustRegisterPlugin(&imgio.PluginConfig{
		Name:    PluginName,
		Summary: "TIFF, BMP and WebP via golang.org/x/image",
		Factory: New,
	})
}

func sniff(head []byte) string {
	switch {
	case bytes.HasPrefix(head, []byte("II*\x00")) || bytes.HasPrefix(head, []byte("MM\x00*")):
		return "tiff"
	case bytes.HasPrefix(head, []byte("BM")):
		return "bmp"
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return "webp"
	}
	return ""
}

func formatForExtension(ext string) string {
	switch ext {
	case "tif", "tiff":
		return "tiff"
	case "bmp":
		return "bmp"
	}
	// webp is read-only: golang.org/x/image has no encoder for it.
	return ""
}

// New probes read requests by magic number and write requests by target
// extension. Recognized options: "compression" ("deflate" or "none") for
// TIFF encoding.
func New(req *imgio.Request, opts imgio.Options) (imgio.Backend, error) {
	if req.Mode().IsRead() {
		head, err := req.PeekBytes(0)
		if err != nil {
			return nil, err
		}
		format := sniff(head)
		if format == "" {
			return nil, imgio.CannotHandlef("no TIFF, BMP or WebP signature in %q", req.Filename())
		}
		return &backend{req: req, format: format, opts: opts}, nil
	}

	format := formatForExtension(req.ExtensionHint())
	if format == "" {
		return nil, imgio.CannotHandlef("extension %q is not a TIFF or BMP target", req.ExtensionHint())
	}
	return &backend{req: req, format: format, opts: opts}, nil
}

type backend struct {
	req    *imgio.Request
	format string
	opts   imgio.Options

	decoded bool
	im      *imgio.NDImage
	closed  bool
}

func (b *backend) Request() *imgio.Request { return b.req }

func (b *backend) decode() error {
	if b.decoded {
		return nil
	}
	f, err := b.req.File()
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	var img image.Image
	switch b.format {
	case "tiff":
		img, err = tiff.Decode(f)
	case "bmp":
		img, err = bmp.Decode(f)
	case "webp":
		img, err = webp.Decode(f)
	default:
		err = fmt.Errorf("unknown format %q", b.format)
	}
	if err != nil {
		return fmt.Errorf("decoding %s %q: %w", b.format, b.req.Filename(), err)
	}
	b.im = imgio.FromImage(img)
	b.decoded = true
	return nil
}

// All three formats hold exactly one image per resource.
func (b *backend) frame(index int) (*imgio.NDImage, error) {
	if err := b.decode(); err != nil {
		return nil, err
	}
	if index != 0 && index != imgio.IndexAll {
		return nil, fmt.Errorf("index %d of 1 image: %w", index, imgio.ErrOutOfRange)
	}
	return b.im, nil
}

func (b *backend) Read(index int, _ imgio.Options) (*imgio.NDImage, error) {
	if index == imgio.IndexAll {
		im, err := b.frame(0)
		if err != nil {
			return nil, err
		}
		return imgio.Stack([]*imgio.NDImage{im})
	}
	return b.frame(index)
}

func (b *backend) Write(images []*imgio.NDImage, opts imgio.Options) ([]byte, error) {
	if len(images) != 1 {
		return nil, fmt.Errorf("%s holds a single image, got %d", b.format, len(images))
	}
	merged := b.opts
	if opts != nil {
		merged = opts
	}
	img, err := images[0].Image()
	if err != nil {
		return nil, err
	}
	f, err := b.req.File()
	if err != nil {
		return nil, err
	}

	switch b.format {
	case "tiff":
		comp := tiff.Deflate
		if v, ok := merged["compression"].(string); ok && v == "none" {
			comp = tiff.Uncompressed
		}
		err = tiff.Encode(f, img, &tiff.Options{Compression: comp})
	case "bmp":
		err = bmp.Encode(f, img)
	default:
		err = fmt.Errorf("%s encoding is not supported", b.format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", b.format, err)
	}
	return b.req.Result(), nil
}

func (b *backend) Iter(_ imgio.Options) (imgio.Iterator, error) {
	if err := b.decode(); err != nil {
		return nil, err
	}
	return &singleIterator{im: b.im}, nil
}

type singleIterator struct {
	im   *imgio.NDImage
	done bool
}

func (it *singleIterator) Next() (*imgio.NDImage, error) {
	if it.done {
		return nil, io.EOF
	}
	it.done = true
	return it.im, nil
}

func (b *backend) Metadata(index int, excludeApplied bool) (imgio.Metadata, error) {
	im, err := b.frame(index)
	if err != nil {
		return nil, err
	}
	// This backend applies nothing at decode time, so the applied/raw
	// distinction is vacuous and both values are honored.
	_ = excludeApplied
	return imgio.Metadata{
		"format":   b.format,
		"width":    im.Width(),
		"height":   im.Height(),
		"channels": im.Channels(),
		"dtype":    string(im.Dtype),
	}, nil
}

func (b *backend) Properties(index int) (*imgio.Properties, error) {
	im, err := b.frame(index)
	if err != nil {
		return nil, err
	}
	if index == imgio.IndexAll {
		return &imgio.Properties{
			Shape:   append([]int{1}, im.Shape...),
			Dtype:   im.Dtype,
			IsBatch: true,
			NImages: 1,
			Format:  b.format,
		}, nil
	}
	p := imgio.PropertiesOf(im)
	p.Format = b.format
	return p, nil
}

// Close finishes the owned request. Safe to call more than once.
func (b *backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.req.Finish()
}
