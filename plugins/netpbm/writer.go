package netpbm

import (
	"fmt"
	"io"

	"github.com/ironsheep/imgio"
)

// writer appends netpbm images to the request's output stream. Successive
// Append calls produce a concatenated multi-image stream, which is valid
// netpbm.
type writer struct {
	req    *imgio.Request
	out    io.Writer
	plain  bool
	forced int // channel layout forced by the target extension, 0 = free
	closed bool
}

var _ imgio.LegacyWriter = (*writer)(nil)

func newWriter(req *imgio.Request, plain bool) (*writer, error) {
	f, err := req.File()
	if err != nil {
		return nil, err
	}
	return &writer{
		req:    req,
		out:    f,
		plain:  plain,
		forced: extVariant(req.ExtensionHint()),
	}, nil
}

// Append encodes one image. Gray input to a .ppm target is replicated to
// three channels; color input to a .pgm/.pbm target is reduced to luma.
// Alpha channels are rejected: netpbm has no transparency.
func (w *writer) Append(im *imgio.NDImage) error {
	if w.closed {
		return fmt.Errorf("netpbm writer is closed")
	}
	if len(im.Shape) != 2 && (len(im.Shape) != 3 || im.Shape[2] != 1 && im.Shape[2] != 3) {
		return fmt.Errorf("netpbm cannot represent shape %v (alpha and batches are unsupported)",
			im.Shape)
	}
	if im.Dtype != imgio.Uint8 && im.Dtype != imgio.Uint16 {
		return fmt.Errorf("netpbm cannot represent dtype %s", im.Dtype)
	}

	h, width := im.Shape[0], im.Shape[1]
	channels := 1
	if len(im.Shape) == 3 {
		channels = im.Shape[2]
	}

	samples, channels := convertChannels(im, channels, w.forced)
	maxval := 255
	if im.Dtype == imgio.Uint16 {
		maxval = 65535
		if w.plain {
			return fmt.Errorf("plain rasters are 8-bit; re-encode the image or drop the plain option")
		}
	}
	if w.req.ExtensionHint() == "pbm" {
		if im.Dtype == imgio.Uint16 {
			return fmt.Errorf("bitmaps are 1-bit; convert 16-bit input before writing .pbm")
		}
		return w.writeBitmap(samples, width, h)
	}

	magic := magicFor(channels, maxval, w.plain)
	if _, err := fmt.Fprintf(w.out, "%s\n%d %d\n%d\n", magic, width, h, maxval); err != nil {
		return err
	}
	if w.plain {
		return w.writePlain(samples, width*channels)
	}
	_, err := w.out.Write(samples)
	return err
}

// convertChannels adapts the sample layout to the forced target variant.
func convertChannels(im *imgio.NDImage, channels, forced int) ([]byte, int) {
	if forced == 0 || forced == channels || im.Dtype == imgio.Uint16 {
		return im.Pix, channels
	}
	size := im.Dtype.Size()
	n := len(im.Pix) / (channels * size)
	if forced == 3 {
		out := make([]byte, n*3)
		for i := 0; i < n; i++ {
			out[i*3], out[i*3+1], out[i*3+2] = im.Pix[i], im.Pix[i], im.Pix[i]
		}
		return out, 3
	}
	// 3 -> 1: integer BT.601 luma.
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		r := int(im.Pix[i*3])
		g := int(im.Pix[i*3+1])
		b := int(im.Pix[i*3+2])
		out[i] = byte((299*r + 587*g + 114*b) / 1000)
	}
	return out, 1
}

// writeBitmap emits P1/P4 by thresholding gray samples at mid-scale.
// Netpbm bitmaps store 1 for black.
func (w *writer) writeBitmap(samples []byte, width, height int) error {
	magic := "P4"
	if w.plain {
		magic = "P1"
	}
	if _, err := fmt.Fprintf(w.out, "%s\n%d %d\n", magic, width, height); err != nil {
		return err
	}

	if w.plain {
		for y := 0; y < height; y++ {
			row := make([]byte, 0, width*2)
			for x := 0; x < width; x++ {
				if samples[y*width+x] < 128 {
					row = append(row, '1', ' ')
				} else {
					row = append(row, '0', ' ')
				}
			}
			row[len(row)-1] = '\n'
			if _, err := w.out.Write(row); err != nil {
				return err
			}
		}
		return nil
	}

	rowBytes := (width + 7) / 8
	row := make([]byte, rowBytes)
	for y := 0; y < height; y++ {
		for i := range row {
			row[i] = 0
		}
		for x := 0; x < width; x++ {
			if samples[y*width+x] < 128 {
				row[x/8] |= 1 << (7 - uint(x%8))
			}
		}
		if _, err := w.out.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// writePlain emits ASCII samples, one raster row per line.
func (w *writer) writePlain(samples []byte, perLine int) error {
	for i, v := range samples {
		sep := byte(' ')
		if (i+1)%perLine == 0 {
			sep = '\n'
		}
		if _, err := fmt.Fprintf(w.out, "%d%c", v, sep); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the writer closed. Flushing the output to its final target is
// the request's job (Finish); per the legacy lifetime rules the writer must
// not finish the request itself.
func (w *writer) Close() error {
	w.closed = true
	return nil
}
