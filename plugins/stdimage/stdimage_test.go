package stdimage

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/imgio"
)

// encodePNG builds a small solid-color PNG in memory.
func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// encodeGIFFrames builds an animated GIF with one solid frame per gray level.
func encodeGIFFrames(t *testing.T, w, h int, levels ...uint8) []byte {
	t.Helper()
	g := &gif.GIF{}
	for _, lv := range levels {
		pm := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		idx := uint8(pm.Palette.Index(color.Gray{Y: lv}))
		for i := range pm.Pix {
			pm.Pix[i] = idx
		}
		g.Image = append(g.Image, pm)
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want string
	}{
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, "png"},
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0}, "jpeg"},
		{"gif87a", []byte("GIF87a"), "gif"},
		{"gif89a", []byte("GIF89a"), "gif"},
		{"text", []byte("hello world"), ""},
		{"short", []byte{0xff}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniff(tt.head))
		})
	}
}

func TestReadPNGFromBytes(t *testing.T) {
	data := encodePNG(t, 3, 2, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	backend, err := imgio.Open(data, imgio.ModeRead, imgio.WithPlugin(PluginName))
	require.NoError(t, err)
	defer backend.Close()

	im, err := backend.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, im.Shape)
	assert.Equal(t, imgio.Uint8, im.Dtype)
	assert.Equal(t, byte(200), im.Pix[0])
}

func TestAutoSearchFindsPNG(t *testing.T) {
	data := encodePNG(t, 2, 2, color.NRGBA{A: 255})

	backend, err := imgio.Open(data, imgio.ModeRead, imgio.WithLegacyOnly(false))
	require.NoError(t, err)
	defer backend.Close()

	props, err := backend.Properties(0)
	require.NoError(t, err)
	assert.Equal(t, "png", props.Format)
}

func TestTextBytesRejected(t *testing.T) {
	_, err := imgio.Open([]byte("definitely not an image"), imgio.ModeRead,
		imgio.WithPlugin(PluginName))
	require.ErrorIs(t, err, imgio.ErrCannotHandle)
}

func TestWritePNGReturnBytes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithPlugin(PluginName), imgio.WithFormatHint(".png"))
	require.NoError(t, err)

	out, err := backend.Write([]*imgio.NDImage{imgio.FromImage(src)}, nil)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, src.Pix, decoded.(*image.NRGBA).Pix)
}

func TestWriteRejectsMultiplePNGImages(t *testing.T) {
	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithPlugin(PluginName), imgio.WithFormatHint("png"))
	require.NoError(t, err)
	defer backend.Close()

	im := imgio.FromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	_, err = backend.Write([]*imgio.NDImage{im, im}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single image")
}

func TestGIFMultiFrame(t *testing.T) {
	data := encodeGIFFrames(t, 4, 4, 0, 128, 255)

	backend, err := imgio.Open(data, imgio.ModeRead, imgio.WithPlugin(PluginName))
	require.NoError(t, err)
	defer backend.Close()

	props, err := backend.Properties(imgio.IndexAll)
	require.NoError(t, err)
	assert.True(t, props.IsBatch)
	assert.Equal(t, 3, props.NImages)
	assert.Equal(t, []int{3, 4, 4, 4}, props.Shape)

	batch, err := backend.Read(imgio.IndexAll, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 4, 4}, batch.Shape)

	it, err := backend.Iter(nil)
	require.NoError(t, err)
	var count int
	for {
		_, err := it.Next()
		if err != nil {
			break
		}
		count++
	}
	assert.Equal(t, 3, count)

	_, err = backend.Read(7, nil)
	require.ErrorIs(t, err, imgio.ErrOutOfRange)
}

func TestGIFAnimationRoundTrip(t *testing.T) {
	frames := []*imgio.NDImage{
		imgio.FromImage(image.NewNRGBA(image.Rect(0, 0, 2, 2))),
		imgio.FromImage(image.NewNRGBA(image.Rect(0, 0, 2, 2))),
	}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithPlugin(PluginName), imgio.WithFormatHint("gif"),
		imgio.WithOptions(imgio.Options{"delay": 25, "loop": 2}))
	require.NoError(t, err)

	out, err := backend.Write(frames, nil)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	g, err := gif.DecodeAll(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Equal(t, []int{25, 25}, g.Delay)
	assert.Equal(t, 2, g.LoopCount)
}

func TestMetadata(t *testing.T) {
	data := encodePNG(t, 2, 2, color.NRGBA{R: 255, A: 255})

	backend, err := imgio.Open(data, imgio.ModeRead, imgio.WithPlugin(PluginName))
	require.NoError(t, err)
	defer backend.Close()

	meta, err := backend.Metadata(0, false)
	require.NoError(t, err)
	assert.Equal(t, "png", meta["format"])
	assert.Equal(t, 2, meta["width"])
	assert.Contains(t, meta, "color_summary")
	assert.Equal(t, false, meta["autorotate_applied"])

	meta, err = backend.Metadata(0, true)
	require.NoError(t, err)
	assert.NotContains(t, meta, "autorotate_applied")
}

func TestWriteExtensionMismatchIsIncapability(t *testing.T) {
	_, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithPlugin(PluginName), imgio.WithFormatHint(".tiff"))
	require.ErrorIs(t, err, imgio.ErrCannotHandle)
}
