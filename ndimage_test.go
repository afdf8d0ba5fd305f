package imgio

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	a := &NDImage{Shape: []int{2, 2}, Dtype: Uint8, Pix: []byte{1, 2, 3, 4}}
	b := &NDImage{Shape: []int{2, 2}, Dtype: Uint8, Pix: []byte{5, 6, 7, 8}}

	batch, err := Stack([]*NDImage{a, b})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, batch.Shape)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, batch.Pix)
}

func TestStackMismatch(t *testing.T) {
	a := &NDImage{Shape: []int{2, 2}, Dtype: Uint8, Pix: make([]byte, 4)}

	_, err := Stack([]*NDImage{a, {Shape: []int{2, 3}, Dtype: Uint8, Pix: make([]byte, 6)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shape")

	_, err = Stack([]*NDImage{a, {Shape: []int{2, 2}, Dtype: Uint16, Pix: make([]byte, 8)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dtype")

	_, err = Stack(nil)
	require.Error(t, err)
}

func TestFromImageGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = byte(i * 10)
	}

	im := FromImage(src)
	assert.Equal(t, []int{2, 3}, im.Shape)
	assert.Equal(t, Uint8, im.Dtype)
	assert.Equal(t, src.Pix, im.Pix)

	back, err := im.Image()
	require.NoError(t, err)
	assert.Equal(t, src.Pix, back.(*image.Gray).Pix)
}

func TestFromImageGray16(t *testing.T) {
	src := image.NewGray16(image.Rect(0, 0, 2, 2))
	src.SetGray16(0, 0, color.Gray16{Y: 0xBEEF})

	im := FromImage(src)
	assert.Equal(t, []int{2, 2}, im.Shape)
	assert.Equal(t, Uint16, im.Dtype)
	assert.Equal(t, []byte{0xBE, 0xEF}, im.Pix[:2], "uint16 samples are big-endian")

	back, err := im.Image()
	require.NoError(t, err)
	assert.Equal(t, color.Gray16{Y: 0xBEEF}, back.(*image.Gray16).Gray16At(0, 0))
}

func TestFromImageNRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 128})

	im := FromImage(src)
	assert.Equal(t, []int{1, 2, 4}, im.Shape)
	assert.Equal(t, []byte{10, 20, 30, 255, 40, 50, 60, 128}, im.Pix)

	back, err := im.Image()
	require.NoError(t, err)
	assert.Equal(t, src.Pix, back.(*image.NRGBA).Pix)
}

func TestFromImageGenericConversion(t *testing.T) {
	// RGBA is not one of the fast paths; it goes through color conversion.
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	im := FromImage(src)
	assert.Equal(t, []int{1, 1, 4}, im.Shape)
	assert.Equal(t, []byte{200, 100, 50, 255}, im.Pix)
}

func TestImageRGBGetsOpaqueAlpha(t *testing.T) {
	im := &NDImage{Shape: []int{1, 2, 3}, Dtype: Uint8, Pix: []byte{1, 2, 3, 4, 5, 6}}
	out, err := im.Image()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 0xff, 4, 5, 6, 0xff}, out.(*image.NRGBA).Pix)
}

func TestImageRejectsBatch(t *testing.T) {
	batch := &NDImage{Shape: []int{2, 1, 1, 4}, Dtype: Uint8, Pix: make([]byte, 8)}
	_, err := batch.Image()
	require.Error(t, err)
}

func TestImageRejectsBufferMismatch(t *testing.T) {
	im := &NDImage{Shape: []int{2, 2}, Dtype: Uint8, Pix: make([]byte, 3)}
	_, err := im.Image()
	require.Error(t, err)
}

func TestPropertiesOf(t *testing.T) {
	single := &NDImage{Shape: []int{4, 6, 3}, Dtype: Uint8, Pix: make([]byte, 72)}
	p := PropertiesOf(single)
	assert.False(t, p.IsBatch)
	assert.Equal(t, 1, p.NImages)

	batch := &NDImage{Shape: []int{5, 4, 6, 3}, Dtype: Uint8, Pix: make([]byte, 360)}
	p = PropertiesOf(batch)
	assert.True(t, p.IsBatch)
	assert.Equal(t, 5, p.NImages)
}

func TestDimensionHelpers(t *testing.T) {
	gray := &NDImage{Shape: []int{4, 6}, Dtype: Uint8}
	assert.Equal(t, 6, gray.Width())
	assert.Equal(t, 4, gray.Height())
	assert.Equal(t, 1, gray.Channels())

	rgb := &NDImage{Shape: []int{4, 6, 3}, Dtype: Uint8}
	assert.Equal(t, 6, rgb.Width())
	assert.Equal(t, 4, rgb.Height())
	assert.Equal(t, 3, rgb.Channels())
}
