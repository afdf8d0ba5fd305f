package imgio

import (
	"fmt"
	"io"
)

// memFile is an in-memory io.ReadWriteSeeker backing byte-buffer and
// sentinel requests. Unlike bytes.Buffer it supports seeking, which the
// Backend contract requires of Request.File.
type memFile struct {
	data []byte
	off  int64
}

func newMemFile(data []byte) *memFile {
	return &memFile{data: data}
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.off + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.off:end], p)
	f.off = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		abs = int64(len(f.data)) + offset
	default:
		return 0, fmt.Errorf("memfile: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("memfile: negative seek position %d", abs)
	}
	f.off = abs
	return abs, nil
}

// Bytes returns the accumulated contents regardless of the current offset.
func (f *memFile) Bytes() []byte {
	return f.data
}

// readOnlyFile adapts a caller-supplied io.ReadSeeker to the
// io.ReadWriteSeeker shape of Request.File for read-mode requests.
type readOnlyFile struct {
	io.ReadSeeker
}

func (readOnlyFile) Write([]byte) (int, error) {
	return 0, fmt.Errorf("request was opened for reading: %w", ErrUnsupportedResource)
}
