package netpbm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ironsheep/imgio"
)

// reader decodes a (possibly concatenated) netpbm stream lazily: images are
// parsed in order as indices are requested and cached for re-reads.
type reader struct {
	req *imgio.Request
	br  *bufio.Reader

	frames    []*imgio.NDImage
	metas     []imgio.Metadata
	exhausted bool
	closed    bool
}

var _ imgio.LegacyReader = (*reader)(nil)

func newReader(req *imgio.Request) (*reader, error) {
	f, err := req.File()
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &reader{req: req, br: bufio.NewReader(f)}, nil
}

// ensure parses images until index is cached or the stream ends.
func (r *reader) ensure(index int) error {
	if r.closed {
		return fmt.Errorf("netpbm reader is closed")
	}
	if index < 0 {
		return fmt.Errorf("index %d: %w", index, imgio.ErrOutOfRange)
	}
	for len(r.frames) <= index && !r.exhausted {
		if err := r.parseNext(); err == io.EOF {
			r.exhausted = true
		} else if err != nil {
			return err
		}
	}
	if index >= len(r.frames) {
		return fmt.Errorf("index %d of %d images: %w", index, len(r.frames), imgio.ErrOutOfRange)
	}
	return nil
}

func (r *reader) Length() (int, error) {
	if r.closed {
		return 0, fmt.Errorf("netpbm reader is closed")
	}
	for !r.exhausted {
		if err := r.parseNext(); err == io.EOF {
			r.exhausted = true
		} else if err != nil {
			return 0, err
		}
	}
	return len(r.frames), nil
}

func (r *reader) GetData(index int) (*imgio.NDImage, error) {
	if err := r.ensure(index); err != nil {
		return nil, err
	}
	return r.frames[index], nil
}

func (r *reader) GetMeta(index int) (imgio.Metadata, error) {
	if err := r.ensure(index); err != nil {
		return nil, err
	}
	return r.metas[index], nil
}

// Close marks the reader closed. It does not touch the request: the request
// belongs to whoever opened it, and per the legacy lifetime rules the
// resource may still be in use by another helper.
func (r *reader) Close() error {
	r.closed = true
	return nil
}

// parseNext decodes one image from the stream. io.EOF means a clean end of
// the stream before any header byte.
func (r *reader) parseNext() error {
	magic, err := nextToken(r.br)
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return err
	}
	if len(magic) != 2 || magic[0] != 'P' || magic[1] < '1' || magic[1] > '6' {
		return fmt.Errorf("bad netpbm magic %q", magic)
	}

	width, err := nextInt(r.br)
	if err != nil {
		return fmt.Errorf("netpbm header: %w", err)
	}
	height, err := nextInt(r.br)
	if err != nil {
		return fmt.Errorf("netpbm header: %w", err)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("bad netpbm dimensions %dx%d", width, height)
	}

	maxval := 1
	if magic[1] != '1' && magic[1] != '4' {
		maxval, err = nextInt(r.br)
		if err != nil {
			return fmt.Errorf("netpbm header: %w", err)
		}
		if maxval <= 0 || maxval >= 1<<16 {
			return fmt.Errorf("bad netpbm maxval %d", maxval)
		}
	}

	var im *imgio.NDImage
	switch magic[1] {
	case '1':
		im, err = r.readPlainBitmap(width, height)
	case '2':
		im, err = r.readPlainSamples(width, height, 1, maxval)
	case '3':
		im, err = r.readPlainSamples(width, height, 3, maxval)
	case '4':
		im, err = r.readRawBitmap(width, height)
	case '5':
		im, err = r.readRawSamples(width, height, 1, maxval)
	case '6':
		im, err = r.readRawSamples(width, height, 3, maxval)
	}
	if err != nil {
		return err
	}

	r.frames = append(r.frames, im)
	r.metas = append(r.metas, imgio.Metadata{
		"magic":   string(magic),
		"variant": variantName(string(magic)),
		"plain":   isPlainMagic(magic),
		"width":   width,
		"height":  height,
		"maxval":  maxval,
	})
	return nil
}

// readPlainBitmap reads a P1 raster. Digits may be packed without
// whitespace, so it scans rune by rune. 1 is black (0), 0 is white (255).
func (r *reader) readPlainBitmap(width, height int) (*imgio.NDImage, error) {
	pix := make([]byte, width*height)
	for i := range pix {
		c, err := nextNonSpace(r.br)
		if err != nil {
			return nil, fmt.Errorf("P1 raster truncated at sample %d: %w", i, err)
		}
		switch c {
		case '0':
			pix[i] = 0xff
		case '1':
			pix[i] = 0x00
		default:
			return nil, fmt.Errorf("P1 raster has invalid character %q", c)
		}
	}
	return &imgio.NDImage{Shape: []int{height, width}, Dtype: imgio.Uint8, Pix: pix}, nil
}

// readPlainSamples reads P2/P3 ASCII rasters, scaling samples to 8 bits.
func (r *reader) readPlainSamples(width, height, channels, maxval int) (*imgio.NDImage, error) {
	n := width * height * channels
	pix := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := nextInt(r.br)
		if err != nil {
			return nil, fmt.Errorf("raster truncated at sample %d: %w", i, err)
		}
		if v < 0 || v > maxval {
			return nil, fmt.Errorf("sample %d out of range 0..%d", v, maxval)
		}
		pix[i] = byte(v * 255 / maxval)
	}
	shape := []int{height, width}
	if channels == 3 {
		shape = append(shape, 3)
	}
	return &imgio.NDImage{Shape: shape, Dtype: imgio.Uint8, Pix: pix}, nil
}

// readRawBitmap reads a P4 raster: rows padded to whole bytes, MSB first.
func (r *reader) readRawBitmap(width, height int) (*imgio.NDImage, error) {
	rowBytes := (width + 7) / 8
	raw := make([]byte, rowBytes*height)
	if _, err := io.ReadFull(r.br, raw); err != nil {
		return nil, fmt.Errorf("P4 raster truncated: %w", err)
	}
	pix := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bit := raw[y*rowBytes+x/8] >> (7 - uint(x%8)) & 1
			if bit == 0 {
				pix[y*width+x] = 0xff
			}
		}
	}
	return &imgio.NDImage{Shape: []int{height, width}, Dtype: imgio.Uint8, Pix: pix}, nil
}

// readRawSamples reads P5/P6 rasters. maxval above 255 means two bytes per
// sample, big-endian; those are scaled to the full 16-bit range.
func (r *reader) readRawSamples(width, height, channels, maxval int) (*imgio.NDImage, error) {
	n := width * height * channels
	shape := []int{height, width}
	if channels == 3 {
		shape = append(shape, 3)
	}

	if maxval < 256 {
		pix := make([]byte, n)
		if _, err := io.ReadFull(r.br, pix); err != nil {
			return nil, fmt.Errorf("raster truncated: %w", err)
		}
		if maxval != 255 {
			for i, v := range pix {
				pix[i] = byte(int(v) * 255 / maxval)
			}
		}
		return &imgio.NDImage{Shape: shape, Dtype: imgio.Uint8, Pix: pix}, nil
	}

	raw := make([]byte, n*2)
	if _, err := io.ReadFull(r.br, raw); err != nil {
		return nil, fmt.Errorf("raster truncated: %w", err)
	}
	for i := 0; i < n; i++ {
		v := int(raw[i*2])<<8 | int(raw[i*2+1])
		v = v * 65535 / maxval
		raw[i*2] = byte(v >> 8)
		raw[i*2+1] = byte(v)
	}
	return &imgio.NDImage{Shape: shape, Dtype: imgio.Uint16, Pix: raw}, nil
}

// nextToken skips whitespace and # comments, reads one token and consumes
// exactly one trailing whitespace byte, which is what positions the reader
// correctly at the start of a raw raster.
func nextToken(br *bufio.Reader) ([]byte, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if c == '#' {
			if _, err := br.ReadString('\n'); err != nil {
				return nil, err
			}
			continue
		}
		if isSpace(c) {
			continue
		}
		tok := []byte{c}
		for {
			c, err := br.ReadByte()
			if err == io.EOF {
				return tok, nil
			}
			if err != nil {
				return nil, err
			}
			if isSpace(c) {
				return tok, nil
			}
			tok = append(tok, c)
		}
	}
}

func nextInt(br *bufio.Reader) (int, error) {
	tok, err := nextToken(br)
	if err != nil {
		return 0, err
	}
	v := 0
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("expected integer, got %q", tok)
		}
		v = v*10 + int(c-'0')
		if v > 1<<30 {
			return 0, fmt.Errorf("integer %q too large", tok)
		}
	}
	return v, nil
}

// nextNonSpace returns the next non-whitespace, non-comment byte.
func nextNonSpace(br *bufio.Reader) (byte, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if c == '#' {
			if _, err := br.ReadString('\n'); err != nil {
				return 0, err
			}
			continue
		}
		if !isSpace(c) {
			return c, nil
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
