package imgio

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// LegacyAdapter presents a legacy two-phase format (CanRead/CanWrite
// predicates plus index-addressable reader/writer helpers) through the
// modern one-phase Backend contract.
//
// Construction is the probe: the relevant predicate runs immediately and a
// false answer becomes ErrCannotHandle, so the resolver's loop treats legacy
// and modern plugins identically. A failed construction never yields a
// half-initialized adapter.
//
// Lifetime exception: Close releases the legacy reader/writer but does NOT
// finish the underlying Request. Callers of LegacyGetReader/LegacyGetWriter
// are allowed to keep using those helpers (and through them the resource)
// after the adapter itself is dropped, for compatibility with the
// predecessor API's object lifetimes. This is a deliberate break from the
// otherwise-universal "owner finishes on Close" rule: resources opened
// through a legacy plugin can outlive the adapter, and whoever holds the
// helper is responsible for the request's eventual Finish.
type LegacyAdapter struct {
	req    *Request
	format LegacyFormat

	reader     LegacyReader
	readerOpts Options
	closed     bool
}

var _ Backend = (*LegacyAdapter)(nil)

// NewLegacyAdapter evaluates the format's capability predicate for the
// request's mode and wraps it on success. A false predicate returns an
// error matching ErrCannotHandle.
func NewLegacyAdapter(req *Request, format LegacyFormat) (*LegacyAdapter, error) {
	if req.Mode().IsRead() {
		if !format.CanRead(req) {
			return nil, CannotHandlef("legacy format %q cannot read %q", format.Name(), req.Filename())
		}
	} else {
		if !format.CanWrite(req) {
			return nil, CannotHandlef("legacy format %q cannot write %q", format.Name(), req.Filename())
		}
	}
	return &LegacyAdapter{req: req, format: format}, nil
}

// Request returns the descriptor the adapter was constructed with.
func (a *LegacyAdapter) Request() *Request { return a.req }

// LegacyGetReader returns the raw legacy reader, creating it on first use.
// The reader is memoized for the adapter's lifetime unless opts change, in
// which case the previous reader is closed and a fresh one created.
//
// The returned reader stays valid after the adapter is closed; see the type
// comment for the lifetime rules.
func (a *LegacyAdapter) LegacyGetReader(opts Options) (LegacyReader, error) {
	if !a.req.Mode().IsRead() {
		return nil, fmt.Errorf("request %q was opened for writing", a.req.Filename())
	}
	if a.reader != nil && reflect.DeepEqual(a.readerOpts, opts) {
		return a.reader, nil
	}
	if a.reader != nil {
		a.reader.Close()
		a.reader = nil
	}
	rd, err := a.format.Reader(a.req, opts)
	if err != nil {
		return nil, err
	}
	a.reader = rd
	a.readerOpts = opts
	return rd, nil
}

// LegacyGetWriter returns a raw legacy writer. Writers are not memoized;
// each call opens a fresh one.
func (a *LegacyAdapter) LegacyGetWriter(opts Options) (LegacyWriter, error) {
	if !a.req.Mode().IsWrite() {
		return nil, fmt.Errorf("request %q was opened for reading", a.req.Filename())
	}
	return a.format.Writer(a.req, opts)
}

// Read decodes the image at index. IndexAll decodes every image in the
// resource and stacks them along a new leading axis; stacking fails when
// the sub-images disagree on shape or dtype.
func (a *LegacyAdapter) Read(index int, opts Options) (*NDImage, error) {
	if index == IndexAll {
		images, err := a.readAll(opts)
		if err != nil {
			return nil, err
		}
		return Stack(images)
	}
	rd, err := a.LegacyGetReader(opts)
	if err != nil {
		return nil, err
	}
	return rd.GetData(index)
}

func (a *LegacyAdapter) readAll(opts Options) ([]*NDImage, error) {
	it, err := a.Iter(opts)
	if err != nil {
		return nil, err
	}
	var images []*NDImage
	for {
		im, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		images = append(images, im)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("resource %q contains no images", a.req.Filename())
	}
	return images, nil
}

// Write encodes images through the legacy writer. Single-image formats take
// exactly one item; multi-image formats validate every item's shape (2-D
// grayscale, or 3-D with 1, 3, or 4 trailing channels) before appending it,
// failing on the first invalid item. For the ReturnBytes sentinel target the
// encoded bytes are returned after the writer closes.
func (a *LegacyAdapter) Write(images []*NDImage, opts Options) ([]byte, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to write")
	}
	wr, err := a.LegacyGetWriter(opts)
	if err != nil {
		return nil, err
	}

	single := !strings.ContainsRune(a.format.Modes(), 'I') || a.req.Mode().SubMode() == 'i'
	if single {
		if len(images) != 1 {
			wr.Close()
			return nil, fmt.Errorf("format %q writes a single image per resource, got %d",
				a.format.Name(), len(images))
		}
		if err := wr.Append(images[0]); err != nil {
			wr.Close()
			return nil, err
		}
	} else {
		for i, im := range images {
			if err := checkFrameShape(im); err != nil {
				wr.Close()
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
			if err := wr.Append(im); err != nil {
				wr.Close()
				return nil, fmt.Errorf("image %d: %w", i, err)
			}
		}
	}
	if err := wr.Close(); err != nil {
		return nil, err
	}
	return a.req.Result(), nil
}

// checkFrameShape enforces the multi-image write contract.
func checkFrameShape(im *NDImage) error {
	switch {
	case len(im.Shape) == 2:
		return nil
	case len(im.Shape) == 3:
		switch im.Shape[2] {
		case 1, 3, 4:
			return nil
		}
	}
	return fmt.Errorf("invalid shape %v: expected 2-D grayscale or 3-D with 1, 3, or 4 channels",
		im.Shape)
}

// Iter returns a one-pass iterator driven by the legacy reader. It yields
// images in order and stops when the reader reports the index out of range.
func (a *LegacyAdapter) Iter(opts Options) (Iterator, error) {
	rd, err := a.LegacyGetReader(opts)
	if err != nil {
		return nil, err
	}
	return &legacyIterator{reader: rd}, nil
}

type legacyIterator struct {
	reader LegacyReader
	next   int
}

func (it *legacyIterator) Next() (*NDImage, error) {
	im, err := it.reader.GetData(it.next)
	if errors.Is(err, ErrOutOfRange) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	it.next++
	return im, nil
}

// Metadata returns the legacy reader's metadata for the image at index
// (IndexAll maps to the first image; the legacy contract has no resource-
// level metadata). The legacy contract cannot distinguish applied from raw
// fields, so excludeApplied must be false.
func (a *LegacyAdapter) Metadata(index int, excludeApplied bool) (Metadata, error) {
	if excludeApplied {
		return nil, fmt.Errorf(
			"legacy format %q cannot separate applied from raw metadata; call with excludeApplied=false",
			a.format.Name())
	}
	if index == IndexAll {
		index = 0
	}
	rd, err := a.LegacyGetReader(nil)
	if err != nil {
		return nil, err
	}
	return rd.GetMeta(index)
}

// Properties summarizes the image at index by decoding it; the legacy
// contract offers no cheaper structural query. IndexAll describes the whole
// resource as a batch.
func (a *LegacyAdapter) Properties(index int) (*Properties, error) {
	if index == IndexAll {
		images, err := a.readAll(nil)
		if err != nil {
			return nil, err
		}
		batch, err := Stack(images)
		if err != nil {
			return nil, err
		}
		return &Properties{
			Shape:   batch.Shape,
			Dtype:   batch.Dtype,
			IsBatch: true,
			NImages: len(images),
			Format:  a.format.Name(),
		}, nil
	}
	rd, err := a.LegacyGetReader(nil)
	if err != nil {
		return nil, err
	}
	im, err := rd.GetData(index)
	if err != nil {
		return nil, err
	}
	p := PropertiesOf(im)
	p.Format = a.format.Name()
	return p, nil
}

// Close releases the memoized legacy reader, if any. It deliberately does
// NOT finish the underlying Request: legacy helper objects obtained through
// LegacyGetReader/LegacyGetWriter may outlive the adapter. See the type
// comment.
func (a *LegacyAdapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.reader != nil {
		err := a.reader.Close()
		a.reader = nil
		return err
	}
	return nil
}
