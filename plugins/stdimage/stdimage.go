// Package stdimage is the modern-contract backend for PNG, JPEG and GIF,
// built on the Go standard codecs. Capability is decided by content: the
// factory sniffs the resource's magic number once and rejects anything else
// with the incapability signal.
package stdimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/imgio"
	"github.com/ironsheep/imgio/internal/colorstat"
)

// PluginName is the registry identifier of this backend.
const PluginName = "stdimage"

func init() {
	imgio.MustRegisterPlugin(&imgio.PluginConfig{
		Name:    PluginName,
		Summary: "PNG, JPEG and GIF via the Go standard codecs",
		Factory: New,
	})
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// sniff maps a resource prefix to a format name, or "" when unrecognized.
func sniff(head []byte) string {
	switch {
	case bytes.HasPrefix(head, pngSignature):
		return "png"
	case len(head) >= 3 && head[0] == 0xff && head[1] == 0xd8 && head[2] == 0xff:
		return "jpeg"
	case bytes.HasPrefix(head, []byte("GIF87a")) || bytes.HasPrefix(head, []byte("GIF89a")):
		return "gif"
	}
	return ""
}

func formatForExtension(ext string) string {
	switch ext {
	case "png":
		return "png"
	case "jpg", "jpeg":
		return "jpeg"
	case "gif":
		return "gif"
	}
	return ""
}

// New is the backend factory. Read requests are probed by magic number,
// write requests by the target's extension or format hint.
//
// Recognized options: "autorotate" (bool, apply EXIF orientation on decode),
// "quality" (int, JPEG encode quality), "delay" and "loop" (ints, GIF
// animation parameters).
func New(req *imgio.Request, opts imgio.Options) (imgio.Backend, error) {
	if req.Mode().IsRead() {
		head, err := req.PeekBytes(0)
		if err != nil {
			return nil, err
		}
		format := sniff(head)
		if format == "" {
			return nil, imgio.CannotHandlef("no PNG, JPEG or GIF signature in %q", req.Filename())
		}
		return &backend{req: req, format: format, opts: opts}, nil
	}

	format := formatForExtension(req.ExtensionHint())
	if format == "" {
		return nil, imgio.CannotHandlef("extension %q is not a PNG, JPEG or GIF target",
			req.ExtensionHint())
	}
	return &backend{req: req, format: format, opts: opts}, nil
}

type backend struct {
	req    *imgio.Request
	format string
	opts   imgio.Options

	decoded bool
	frames  []*imgio.NDImage
	gifInfo imgio.Metadata
	closed  bool
}

func (b *backend) Request() *imgio.Request { return b.req }

// decode runs at most once and populates frames. Animated GIFs contribute
// one frame per sub-image; PNG and JPEG always have exactly one.
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

	if b.format == "gif" {
		g, err := gif.DecodeAll(f)
		if err != nil {
			return fmt.Errorf("decoding GIF %q: %w", b.req.Filename(), err)
		}
		for _, frame := range g.Image {
			b.frames = append(b.frames, imgio.FromImage(frame))
		}
		b.gifInfo = imgio.Metadata{
			"loop_count": g.LoopCount,
			"delays":     append([]int{}, g.Delay...),
		}
		b.decoded = true
		return nil
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(b.opts.Bool("autorotate", false)))
	if err != nil {
		return fmt.Errorf("decoding %s %q: %w", b.format, b.req.Filename(), err)
	}
	b.frames = []*imgio.NDImage{imgio.FromImage(img)}
	b.decoded = true
	return nil
}

func (b *backend) frame(index int) (*imgio.NDImage, error) {
	if err := b.decode(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(b.frames) {
		return nil, fmt.Errorf("index %d of %d images: %w", index, len(b.frames), imgio.ErrOutOfRange)
	}
	return b.frames[index], nil
}

func (b *backend) Read(index int, _ imgio.Options) (*imgio.NDImage, error) {
	if index == imgio.IndexAll {
		if err := b.decode(); err != nil {
			return nil, err
		}
		return imgio.Stack(b.frames)
	}
	return b.frame(index)
}

func (b *backend) Write(images []*imgio.NDImage, opts imgio.Options) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to write")
	}
	merged := b.opts
	if opts != nil {
		merged = opts
	}
	f, err := b.req.File()
	if err != nil {
		return nil, err
	}

	switch b.format {
	case "png", "jpeg":
		if len(images) != 1 {
			return nil, fmt.Errorf("%s holds a single image, got %d", b.format, len(images))
		}
		img, err := images[0].Image()
		if err != nil {
			return nil, err
		}
		if b.format == "png" {
			err = png.Encode(f, img)
		} else {
			err = jpeg.Encode(f, img, &jpeg.Options{Quality: merged.Int("quality", 90)})
		}
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", b.format, err)
		}
	case "gif":
		if err := encodeGIF(f, images, merged); err != nil {
			return nil, err
		}
	}
	return b.req.Result(), nil
}

// encodeGIF palettizes each frame with Floyd-Steinberg dithering and writes
// an animation when more than one frame is given.
func encodeGIF(w io.Writer, images []*imgio.NDImage, opts imgio.Options) error {
	g := &gif.GIF{LoopCount: opts.Int("loop", 0)}
	delay := opts.Int("delay", 10)
	for i, im := range images {
		img, err := im.Image()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		pm := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pm, img.Bounds(), img, image.Point{})
		g.Image = append(g.Image, pm)
		g.Delay = append(g.Delay, delay)
	}
	if err := gif.EncodeAll(w, g); err != nil {
		return fmt.Errorf("encoding GIF: %w", err)
	}
	return nil
}

func (b *backend) Iter(_ imgio.Options) (imgio.Iterator, error) {
	if err := b.decode(); err != nil {
		return nil, err
	}
	return &frameIterator{frames: b.frames}, nil
}

type frameIterator struct {
	frames []*imgio.NDImage
	next   int
}

func (it *frameIterator) Next() (*imgio.NDImage, error) {
	if it.next >= len(it.frames) {
		return nil, io.EOF
	}
	im := it.frames[it.next]
	it.next++
	return im, nil
}

// Metadata reports format fields plus a dominant-color summary of the
// requested frame. The only decode-time adjustment this backend makes is
// the optional EXIF auto-orientation, reported as "autorotate_applied" when
// excludeApplied is false.
func (b *backend) Metadata(index int, excludeApplied bool) (imgio.Metadata, error) {
	if index == imgio.IndexAll {
		index = 0
	}
	im, err := b.frame(index)
	if err != nil {
		return nil, err
	}
	img, err := im.Image()
	if err != nil {
		return nil, err
	}
	meta := imgio.Metadata{
		"format":        b.format,
		"width":         im.Width(),
		"height":        im.Height(),
		"channels":      im.Channels(),
		"dtype":         string(im.Dtype),
		"n_images":      len(b.frames),
		"color_summary": colorstat.Summarize(img, 5),
	}
	if !excludeApplied {
		meta["autorotate_applied"] = b.opts.Bool("autorotate", false)
	}
	if b.gifInfo != nil {
		for k, v := range b.gifInfo {
			meta[k] = v
		}
	}
	return meta, nil
}

func (b *backend) Properties(index int) (*imgio.Properties, error) {
	if err := b.decode(); err != nil {
		return nil, err
	}
	if index == imgio.IndexAll {
		batch, err := imgio.Stack(b.frames)
		if err != nil {
			return nil, err
		}
		return &imgio.Properties{
			Shape:   batch.Shape,
			Dtype:   batch.Dtype,
			IsBatch: true,
			NImages: len(b.frames),
			Format:  b.format,
		}, nil
	}
	im, err := b.frame(index)
	if err != nil {
		return nil, err
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
