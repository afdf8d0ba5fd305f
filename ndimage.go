package imgio

import (
	"fmt"
	"image"
	"image/color"
)

// Dtype identifies the per-channel sample width of an NDImage.
type Dtype string

const (
	Uint8  Dtype = "uint8"
	Uint16 Dtype = "uint16"
)

// Size returns the sample width in bytes.
func (d Dtype) Size() int {
	if d == Uint16 {
		return 2
	}
	return 1
}

// NDImage is a decoded image as a dense, row-major sample array.
//
// Shape follows numpy-style conventions:
//
//	[h, w]        grayscale
//	[h, w, c]     interleaved channels, c in {1, 3, 4}
//	[n, h, w, c]  batch of n images (leading axis added by Stack)
//
// Pix holds the raw samples; for Uint16 each sample is big-endian.
type NDImage struct {
	Shape []int
	Dtype Dtype
	Pix   []byte
	Meta  Metadata
}

// Metadata is a free-form mapping of format-specific fields.
type Metadata map[string]any

// Properties is the structural summary of an opened resource's images.
type Properties struct {
	Shape   []int  `json:"shape"`
	Dtype   Dtype  `json:"dtype"`
	IsBatch bool   `json:"is_batch"`
	NImages int    `json:"n_images"`
	Format  string `json:"format,omitempty"`
}

// NumPixels returns the total sample count implied by Shape.
func (im *NDImage) NumPixels() int {
	n := 1
	for _, d := range im.Shape {
		n *= d
	}
	return n
}

// Channels returns the trailing channel count, or 1 for 2-D grayscale.
func (im *NDImage) Channels() int {
	if len(im.Shape) >= 3 {
		return im.Shape[len(im.Shape)-1]
	}
	return 1
}

// Width and Height interpret Shape for single (non-batch) images.
func (im *NDImage) Width() int {
	if len(im.Shape) < 2 {
		return 0
	}
	if len(im.Shape) == 2 {
		return im.Shape[1]
	}
	return im.Shape[len(im.Shape)-2]
}

func (im *NDImage) Height() int {
	if len(im.Shape) < 2 {
		return 0
	}
	if len(im.Shape) == 2 {
		return im.Shape[0]
	}
	return im.Shape[len(im.Shape)-3]
}

// validate checks that Pix matches Shape and Dtype.
func (im *NDImage) validate() error {
	if len(im.Shape) < 2 {
		return fmt.Errorf("ndimage must have at least 2 axes, got shape %v", im.Shape)
	}
	want := im.NumPixels() * im.Dtype.Size()
	if len(im.Pix) != want {
		return fmt.Errorf("pixel buffer is %d bytes, shape %v with dtype %s needs %d",
			len(im.Pix), im.Shape, im.Dtype, want)
	}
	return nil
}

// sameShape reports whether two shapes are elementwise equal.
func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Stack concatenates images of identical shape and dtype along a new leading
// axis, producing a batch. Metadata of the first image is carried over.
func Stack(images []*NDImage) (*NDImage, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("cannot stack zero images")
	}
	first := images[0]
	pix := make([]byte, 0, len(first.Pix)*len(images))
	for i, im := range images {
		if im.Dtype != first.Dtype {
			return nil, fmt.Errorf("cannot stack image %d: dtype %s differs from %s",
				i, im.Dtype, first.Dtype)
		}
		if !sameShape(im.Shape, first.Shape) {
			return nil, fmt.Errorf("cannot stack image %d: shape %v differs from %v",
				i, im.Shape, first.Shape)
		}
		pix = append(pix, im.Pix...)
	}
	shape := append([]int{len(images)}, first.Shape...)
	return &NDImage{Shape: shape, Dtype: first.Dtype, Pix: pix, Meta: first.Meta}, nil
}

// FromImage converts a decoded image.Image into an NDImage.
//
// Gray maps to [h, w] uint8, Gray16 to [h, w] uint16, everything else is
// normalized to NRGBA and mapped to [h, w, 4] uint8.
func FromImage(src image.Image) *NDImage {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch img := src.(type) {
	case *image.Gray:
		pix := make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:(y+1)*w], img.Pix[y*img.Stride:y*img.Stride+w])
		}
		return &NDImage{Shape: []int{h, w}, Dtype: Uint8, Pix: pix}
	case *image.Gray16:
		pix := make([]byte, w*h*2)
		for y := 0; y < h; y++ {
			copy(pix[y*w*2:(y+1)*w*2], img.Pix[y*img.Stride:y*img.Stride+w*2])
		}
		return &NDImage{Shape: []int{h, w}, Dtype: Uint16, Pix: pix}
	case *image.NRGBA:
		pix := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(pix[y*w*4:(y+1)*w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
		}
		return &NDImage{Shape: []int{h, w, 4}, Dtype: Uint8, Pix: pix}
	}

	pix := make([]byte, w*h*4)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
			i += 4
		}
	}
	return &NDImage{Shape: []int{h, w, 4}, Dtype: Uint8, Pix: pix}
}

// Image converts the NDImage back into an image.Image for encoding.
// Batches are rejected; pick a frame first.
func (im *NDImage) Image() (image.Image, error) {
	if err := im.validate(); err != nil {
		return nil, err
	}
	if len(im.Shape) > 3 {
		return nil, fmt.Errorf("cannot convert batch of shape %v to a single image", im.Shape)
	}
	h, w, c := im.Height(), im.Width(), im.Channels()
	rect := image.Rect(0, 0, w, h)

	switch {
	case c == 1 && im.Dtype == Uint16:
		out := image.NewGray16(rect)
		copy(out.Pix, im.Pix)
		return out, nil
	case c == 1:
		out := image.NewGray(rect)
		copy(out.Pix, im.Pix)
		return out, nil
	case c == 3 && im.Dtype == Uint8:
		out := image.NewNRGBA(rect)
		for i := 0; i < w*h; i++ {
			out.Pix[i*4] = im.Pix[i*3]
			out.Pix[i*4+1] = im.Pix[i*3+1]
			out.Pix[i*4+2] = im.Pix[i*3+2]
			out.Pix[i*4+3] = 0xff
		}
		return out, nil
	case c == 4 && im.Dtype == Uint8:
		out := image.NewNRGBA(rect)
		copy(out.Pix, im.Pix)
		return out, nil
	}
	return nil, fmt.Errorf("no image representation for shape %v dtype %s", im.Shape, im.Dtype)
}

// PropertiesOf summarizes a decoded image.
func PropertiesOf(im *NDImage) *Properties {
	p := &Properties{Shape: im.Shape, Dtype: im.Dtype, NImages: 1}
	if len(im.Shape) == 4 || (len(im.Shape) == 3 && im.Shape[2] > 4) {
		p.IsBatch = true
		p.NImages = im.Shape[0]
	}
	return p
}
