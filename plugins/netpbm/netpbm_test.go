package netpbm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/imgio"
)

func openRead(t *testing.T, data []byte, opts ...imgio.OpenOption) imgio.Backend {
	t.Helper()
	backend, err := imgio.Open(data, imgio.ModeRead, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		backend.Close()
		backend.Request().Finish()
	})
	return backend
}

func TestDefaultSearchFindsRawStream(t *testing.T) {
	data := append([]byte("P6\n2 2\n255\n"),
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120)

	// The default search covers legacy plugins, which is this one.
	backend := openRead(t, data)
	_, isAdapter := backend.(*imgio.LegacyAdapter)
	assert.True(t, isAdapter)

	im, err := backend.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 3}, im.Shape)
	assert.Equal(t, imgio.Uint8, im.Dtype)
	assert.Equal(t, byte(10), im.Pix[0])
	assert.Equal(t, byte(120), im.Pix[11])
}

func TestConcatenatedStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("P5\n2 1\n255\n")
	buf.Write([]byte{11, 22})
	buf.WriteString("P5\n2 1\n255\n")
	buf.Write([]byte{33, 44})

	backend := openRead(t, buf.Bytes())

	second, err := backend.Read(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{33, 44}, second.Pix)

	meta, err := backend.Metadata(1, false)
	require.NoError(t, err)
	assert.Equal(t, "P5", meta["magic"])
	assert.Equal(t, "graymap", meta["variant"])
	assert.Equal(t, false, meta["plain"])

	batch, err := backend.Read(imgio.IndexAll, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, batch.Shape)

	_, err = backend.Read(2, nil)
	require.ErrorIs(t, err, imgio.ErrOutOfRange)
}

func TestPlainBitmapPackedDigits(t *testing.T) {
	// P1 digits may run together without whitespace; 1 is black.
	data := []byte("P1\n# tiny glyph\n3 2\n101\n010\n")

	backend := openRead(t, data)
	im, err := backend.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, im.Shape)
	assert.Equal(t, []byte{0x00, 0xff, 0x00, 0xff, 0x00, 0xff}, im.Pix)

	meta, err := backend.Metadata(0, false)
	require.NoError(t, err)
	assert.Equal(t, "bitmap", meta["variant"])
	assert.Equal(t, true, meta["plain"])
}

func TestPlainGraymapScalesMaxval(t *testing.T) {
	data := []byte("P2\n2 1\n15\n15 7\n")

	backend := openRead(t, data)
	im, err := backend.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 7 * 255 / 15}, im.Pix)
}

func TestRawSixteenBit(t *testing.T) {
	data := append([]byte("P5\n2 1\n65535\n"), 0xBE, 0xEF, 0x00, 0x01)

	backend := openRead(t, data)
	im, err := backend.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, imgio.Uint16, im.Dtype)
	assert.Equal(t, []byte{0xBE, 0xEF, 0x00, 0x01}, im.Pix)

	meta, err := backend.Metadata(0, false)
	require.NoError(t, err)
	assert.Equal(t, 65535, meta["maxval"])
}

func TestTruncatedRasterError(t *testing.T) {
	data := []byte("P6\n4 4\n255\nshort")

	backend := openRead(t, data)
	_, err := backend.Read(0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestBadMagicRejectedByProbe(t *testing.T) {
	_, err := imgio.Open([]byte("P9 not a real variant"), imgio.ModeRead)
	require.ErrorIs(t, err, imgio.ErrNoBackend)
}

func TestWriteRawRoundTrip(t *testing.T) {
	im := &imgio.NDImage{
		Shape: []int{2, 2, 3},
		Dtype: imgio.Uint8,
		Pix:   []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithFormatHint("ppm"))
	require.NoError(t, err)
	out, err := backend.Write([]*imgio.NDImage{im}, nil)
	require.NoError(t, err)
	backend.Close()

	assert.True(t, bytes.HasPrefix(out, []byte("P6\n2 2\n255\n")))

	rd := openRead(t, out)
	back, err := rd.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, im.Pix, back.Pix)
}

func TestWritePlainVariantRoundTrip(t *testing.T) {
	im := &imgio.NDImage{Shape: []int{1, 3}, Dtype: imgio.Uint8, Pix: []byte{0, 128, 255}}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithFormatHint("pgm"), imgio.WithPlugin(PlainPluginName))
	require.NoError(t, err)
	out, err := backend.Write([]*imgio.NDImage{im}, nil)
	require.NoError(t, err)
	backend.Close()

	assert.True(t, bytes.HasPrefix(out, []byte("P2\n3 1\n255\n")))
	assert.Contains(t, string(out), "0 128 255")

	rd := openRead(t, out)
	back, err := rd.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, im.Pix, back.Pix)
}

func TestWriteMultiImageStream(t *testing.T) {
	a := &imgio.NDImage{Shape: []int{1, 2}, Dtype: imgio.Uint8, Pix: []byte{10, 20}}
	b := &imgio.NDImage{Shape: []int{1, 2}, Dtype: imgio.Uint8, Pix: []byte{30, 40}}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithFormatHint("pgm"))
	require.NoError(t, err)
	out, err := backend.Write([]*imgio.NDImage{a, b}, nil)
	require.NoError(t, err)
	backend.Close()

	rd := openRead(t, out)
	batch, err := rd.Read(imgio.IndexAll, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, batch.Shape)
	assert.Equal(t, []byte{10, 20, 30, 40}, batch.Pix)
}

func TestWriteGrayToColorTarget(t *testing.T) {
	// A .ppm target forces three channels; gray input is replicated.
	im := &imgio.NDImage{Shape: []int{1, 2}, Dtype: imgio.Uint8, Pix: []byte{9, 200}}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithFormatHint("ppm"))
	require.NoError(t, err)
	out, err := backend.Write([]*imgio.NDImage{im}, nil)
	require.NoError(t, err)
	backend.Close()

	rd := openRead(t, out)
	back, err := rd.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, back.Shape)
	assert.Equal(t, []byte{9, 9, 9, 200, 200, 200}, back.Pix)
}

func TestWriteColorToGrayTarget(t *testing.T) {
	// A .pgm target reduces color input to BT.601 luma.
	im := &imgio.NDImage{Shape: []int{1, 1, 3}, Dtype: imgio.Uint8, Pix: []byte{255, 0, 0}}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithFormatHint("pgm"))
	require.NoError(t, err)
	out, err := backend.Write([]*imgio.NDImage{im}, nil)
	require.NoError(t, err)
	backend.Close()

	rd := openRead(t, out)
	back, err := rd.Read(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, back.Shape)
	assert.Equal(t, byte(255*299/1000), back.Pix[0])
}

func TestWriteBitmapThreshold(t *testing.T) {
	im := &imgio.NDImage{Shape: []int{1, 4}, Dtype: imgio.Uint8, Pix: []byte{0, 100, 128, 255}}

	backend, err := imgio.Open(imgio.ReturnBytes, imgio.ModeWrite,
		imgio.WithFormatHint("pbm"))
	require.NoError(t, err)
	out, err := backend.Write([]*imgio.NDImage{im}, nil)
	require.NoError(t, err)
	backend.Close()

	assert.True(t, bytes.HasPrefix(out, []byte("P4\n4 1\n")))

	rd := openRead(t, out)
	back, err := rd.Read(0, nil)
	require.NoError(t, err)
	// Below mid-scale becomes black, the rest white.
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0xff}, back.Pix)
}

func TestWriterRejectsAlpha(t *testing.T) {
	req, err := imgio.NewRequest(imgio.ReturnBytes, imgio.ModeWrite)
	require.NoError(t, err)
	defer req.Finish()

	w, err := newWriter(req, false)
	require.NoError(t, err)
	defer w.Close()

	rgba := &imgio.NDImage{Shape: []int{1, 1, 4}, Dtype: imgio.Uint8, Pix: []byte{1, 2, 3, 4}}
	err = w.Append(rgba)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}

func TestWriterRejectsPlainSixteenBit(t *testing.T) {
	req, err := imgio.NewRequest(imgio.ReturnBytes, imgio.ModeWrite)
	require.NoError(t, err)
	defer req.Finish()

	w, err := newWriter(req, true)
	require.NoError(t, err)
	defer w.Close()

	deep := &imgio.NDImage{Shape: []int{1, 1}, Dtype: imgio.Uint16, Pix: []byte{0xff, 0xff}}
	require.Error(t, w.Append(deep))
}

func TestReaderLengthOfEmptyStream(t *testing.T) {
	req, err := imgio.NewRequest([]byte{}, imgio.ModeRead)
	require.NoError(t, err)
	defer req.Finish()

	r, err := newReader(req)
	require.NoError(t, err)
	defer r.Close()

	n, err := r.Length()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.GetData(0)
	require.ErrorIs(t, err, imgio.ErrOutOfRange)
}

func TestCanWriteByExtension(t *testing.T) {
	f := &Format{}
	for ext, want := range map[string]bool{
		"ppm": true, "pgm": true, "pbm": true, "pnm": true, "png": false, "": false,
	} {
		req, err := imgio.NewRequest(imgio.ReturnBytes, imgio.ModeWrite)
		require.NoError(t, err)
		req.SetFormatHint(ext)
		assert.Equal(t, want, f.CanWrite(req), ext)
		req.Finish()
	}
}
