package imgio

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/imgio/internal/envcfg"
)

// URIKind classifies the resource reference behind a Request. It is decided
// exactly once at construction and never changes.
type URIKind int

const (
	KindUnknown URIKind = iota
	KindFilename
	KindBytes
	KindStream
	KindHTTP
	KindZip
	KindSentinel
)

func (k URIKind) String() string {
	switch k {
	case KindFilename:
		return "filename"
	case KindBytes:
		return "bytes"
	case KindStream:
		return "stream"
	case KindHTTP:
		return "http"
	case KindZip:
		return "zip-member"
	case KindSentinel:
		return "return-bytes"
	}
	return "unknown"
}

// ReturnBytes is the write-target sentinel: open a write request against it
// and Result returns the encoded output instead of writing it anywhere.
const ReturnBytes = "<bytes>"

// DefaultPeekSize is the prefix length PeekBytes reads when the caller does
// not ask for a specific length.
const DefaultPeekSize = 256

// Request wraps a caller-supplied resource reference and an I/O mode, and
// lazily materializes whatever view of the bytes a backend asks for: a short
// sniffing prefix (PeekBytes), a seekable stream (File), or a real path on
// disk (LocalFilename). Each view is computed at most once and cached.
//
// A Request is created by Open and handed to exactly one backend, which owns
// it and releases it by calling Finish, normally from the backend's Close.
type Request struct {
	raw        any
	kind       URIKind
	mode       Mode
	formatHint string

	filename  string // path for KindFilename, display string otherwise
	url       string
	zipPath   string
	zipMember string
	data      []byte
	reader    io.Reader
	writer    io.Writer

	firstBytes   []byte
	peeked       bool
	streamPrefix []byte // consumed from a non-seekable reader by PeekBytes

	file          io.ReadWriteSeeker
	openedFile    *os.File
	mem           *memFile
	flushOnFinish bool // buffered write target needs copying out on Finish

	localName  string
	localOwned bool

	result   []byte
	finished bool
}

// NewRequest classifies resource and builds a descriptor for it. resource
// may be a filesystem path, an http(s) URL, a "archive.zip/member" path, the
// ReturnBytes sentinel, a []byte buffer (read only), or an open stream
// (io.Reader for reading, io.Writer for writing). Classification failures
// are immediate; no backend is ever consulted for an unclassifiable resource.
func NewRequest(resource any, mode Mode) (*Request, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("invalid mode %q", string(mode))
	}
	if resource == nil {
		return nil, fmt.Errorf("resource is nil: %w", ErrUnsupportedResource)
	}

	r := &Request{raw: resource, mode: mode}
	switch v := resource.(type) {
	case string:
		if err := r.classifyString(v); err != nil {
			return nil, err
		}
	case []byte:
		if !mode.IsRead() {
			return nil, fmt.Errorf("cannot write into a byte slice, use the %q sentinel: %w",
				ReturnBytes, ErrUnsupportedResource)
		}
		r.kind = KindBytes
		r.data = v
		r.filename = "<bytes>"
	default:
		if err := r.classifyStream(resource); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Request) classifyString(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("empty resource string: %w", ErrUnsupportedResource)
	case s == ReturnBytes:
		if !r.mode.IsWrite() {
			return fmt.Errorf("the %q sentinel is only valid for writing: %w",
				ReturnBytes, ErrUnsupportedResource)
		}
		r.kind = KindSentinel
		r.filename = ReturnBytes
		r.mem = newMemFile(nil)
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		// Pseudo-URIs such as <video0> name live-capture devices, which
		// no registered backend serves.
		return fmt.Errorf("pseudo-URI %q: %w", s, ErrUnsupportedResource)
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		if !r.mode.IsRead() {
			return fmt.Errorf("cannot write to URL %q: %w", s, ErrUnsupportedResource)
		}
		r.kind = KindHTTP
		r.url = s
		r.filename = s
	case strings.Contains(strings.ToLower(s), ".zip/"):
		idx := strings.Index(strings.ToLower(s), ".zip/")
		if !r.mode.IsRead() {
			return fmt.Errorf("writing into zip archives is not supported: %w",
				ErrUnsupportedResource)
		}
		r.kind = KindZip
		r.zipPath = s[:idx+4]
		r.zipMember = s[idx+5:]
		r.filename = s
	default:
		if strings.ContainsAny(s, "\x00\n\r") {
			return fmt.Errorf("resource string is not a path: %w", ErrUnsupportedResource)
		}
		r.kind = KindFilename
		r.filename = s
		if r.mode.IsRead() {
			info, err := os.Stat(s)
			if err != nil {
				return fmt.Errorf("no such file: %q", s)
			}
			if info.IsDir() {
				return fmt.Errorf("%q is a directory, not an image file", s)
			}
		} else {
			dir := filepath.Dir(s)
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("directory %q does not exist", dir)
			}
		}
	}
	return nil
}

func (r *Request) classifyStream(resource any) error {
	if r.mode.IsRead() {
		rd, ok := resource.(io.Reader)
		if !ok {
			return fmt.Errorf("cannot read from resource of type %T: %w",
				resource, ErrUnsupportedResource)
		}
		r.kind = KindStream
		r.reader = rd
		r.filename = fmt.Sprintf("<reader %T>", resource)
		return nil
	}
	wr, ok := resource.(io.Writer)
	if !ok {
		return fmt.Errorf("cannot write to resource of type %T: %w",
			resource, ErrUnsupportedResource)
	}
	r.kind = KindStream
	r.writer = wr
	r.filename = fmt.Sprintf("<writer %T>", resource)
	return nil
}

// Raw returns the original resource reference the caller passed in.
func (r *Request) Raw() any { return r.raw }

// Kind returns the classification decided at construction.
func (r *Request) Kind() URIKind { return r.kind }

// Mode returns the request's I/O mode.
func (r *Request) Mode() Mode { return r.mode }

// Filename returns the resource's display name (a real path only for
// KindFilename requests).
func (r *Request) Filename() string { return r.filename }

// FormatHint returns the caller-supplied extension hint, if any.
func (r *Request) FormatHint() string { return r.formatHint }

// SetFormatHint records an extension-like hint ("png" or ".png") that
// backends may consult to bias capability checks.
func (r *Request) SetFormatHint(hint string) { r.formatHint = hint }

// Finished reports whether Finish has run.
func (r *Request) Finished() bool { return r.finished }

// ExtensionHint returns the lower-cased extension (without dot) implied by
// the format hint, falling back to the resource's filename. Empty when
// neither carries one.
func (r *Request) ExtensionHint() string {
	if r.formatHint != "" {
		return strings.ToLower(strings.TrimPrefix(r.formatHint, "."))
	}
	name := r.filename
	if r.kind == KindZip {
		name = r.zipMember
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// PeekBytes returns the first n bytes of the resource without disturbing the
// position of any caller-supplied stream. The result is cached after the
// first call; the first call's n wins and later calls return the same prefix
// regardless of their n. n <= 0 means DefaultPeekSize.
func (r *Request) PeekBytes(n int) ([]byte, error) {
	if r.finished {
		return nil, fmt.Errorf("request already finished")
	}
	if !r.mode.IsRead() {
		return nil, fmt.Errorf("cannot peek a write request")
	}
	if r.peeked {
		return r.firstBytes, nil
	}
	if n <= 0 {
		n = DefaultPeekSize
	}

	var err error
	switch r.kind {
	case KindBytes:
		m := n
		if m > len(r.data) {
			m = len(r.data)
		}
		r.firstBytes = r.data[:m]
	case KindFilename:
		r.firstBytes, err = peekFile(r.filename, n)
	case KindStream:
		r.firstBytes, err = r.peekStream(n)
	case KindHTTP, KindZip:
		r.firstBytes, err = r.peekBacking(n)
	default:
		err = fmt.Errorf("cannot peek a %s request", r.kind)
	}
	if err != nil {
		return nil, err
	}
	r.peeked = true
	return r.firstBytes, nil
}

func peekFile(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:m], nil
}

func (r *Request) peekStream(n int) ([]byte, error) {
	if rs, ok := r.reader.(io.ReadSeeker); ok {
		pos, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		m, err := io.ReadFull(rs, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		if _, err := rs.Seek(pos, io.SeekStart); err != nil {
			return nil, err
		}
		return buf[:m], nil
	}
	// Non-seekable reader: the prefix is consumed here and re-stitched in
	// front of the remaining stream when File buffers it.
	buf := make([]byte, n)
	m, err := io.ReadFull(r.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	r.streamPrefix = buf[:m]
	return r.streamPrefix, nil
}

// peekBacking peeks through the materialized File, restoring its position.
func (r *Request) peekBacking(n int) ([]byte, error) {
	f, err := r.File()
	if err != nil {
		return nil, err
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return nil, err
	}
	return buf[:m], nil
}

// File returns a seekable stream backing the resource, materializing one on
// first use: byte buffers are wrapped in memory, remote resources are fully
// downloaded, zip members extracted, non-seekable caller streams buffered.
// The stream is memoized; repeated calls return the same value.
func (r *Request) File() (io.ReadWriteSeeker, error) {
	if r.finished {
		return nil, fmt.Errorf("request already finished")
	}
	if r.file != nil {
		return r.file, nil
	}

	switch r.kind {
	case KindSentinel:
		r.file = r.mem
	case KindBytes:
		r.file = readOnlyFile{bytes.NewReader(r.data)}
	case KindFilename:
		var (
			f   *os.File
			err error
		)
		if r.mode.IsRead() {
			f, err = os.Open(r.filename)
		} else {
			f, err = os.Create(r.filename)
		}
		if err != nil {
			return nil, err
		}
		r.openedFile = f
		r.file = f
	case KindHTTP:
		body, err := download(r.url)
		if err != nil {
			return nil, err
		}
		r.mem = newMemFile(body)
		r.file = r.mem
	case KindZip:
		body, err := readZipMember(r.zipPath, r.zipMember)
		if err != nil {
			return nil, err
		}
		r.mem = newMemFile(body)
		r.file = r.mem
	case KindStream:
		if err := r.materializeStream(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no stream for %s request", r.kind)
	}
	return r.file, nil
}

func (r *Request) materializeStream() error {
	if r.mode.IsRead() {
		if rws, ok := r.reader.(io.ReadWriteSeeker); ok && len(r.streamPrefix) == 0 {
			r.file = rws
			return nil
		}
		if rs, ok := r.reader.(io.ReadSeeker); ok && len(r.streamPrefix) == 0 {
			r.file = readOnlyFile{rs}
			return nil
		}
		rest, err := io.ReadAll(r.reader)
		if err != nil {
			return err
		}
		r.mem = newMemFile(append(append([]byte{}, r.streamPrefix...), rest...))
		r.file = r.mem
		return nil
	}
	if rws, ok := r.writer.(io.ReadWriteSeeker); ok {
		r.file = rws
		return nil
	}
	// Plain writer: buffer everything and copy out on Finish.
	r.mem = newMemFile(nil)
	r.flushOnFinish = true
	r.file = r.mem
	return nil
}

func download(url string) ([]byte, error) {
	if envcfg.NoNetwork() {
		return nil, fmt.Errorf("cannot fetch %q: %w", url, ErrNetworkDisabled)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func readZipMember(archive, member string) ([]byte, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive %q: %w", archive, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("archive %q has no member %q", archive, member)
}

// LocalFilename returns a path to a real file on disk holding (for reads) or
// receiving (for writes) the resource's bytes, materializing a temp file
// exactly once when the resource is not already a plain file. Owned temp
// files are removed by Finish.
func (r *Request) LocalFilename() (string, error) {
	if r.finished {
		return "", fmt.Errorf("request already finished")
	}
	if r.localName != "" {
		return r.localName, nil
	}
	if r.kind == KindFilename {
		r.localName = r.filename
		return r.localName, nil
	}

	suffix := ""
	if ext := r.ExtensionHint(); ext != "" {
		suffix = "." + ext
	}
	tmp, err := os.CreateTemp("", "imgio-*"+suffix)
	if err != nil {
		return "", err
	}

	if r.mode.IsRead() {
		src, err := r.File()
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", err
		}
		pos, err := src.Seek(0, io.SeekCurrent)
		if err == nil {
			_, err = src.Seek(0, io.SeekStart)
		}
		if err == nil {
			_, err = io.Copy(tmp, src)
		}
		if err == nil {
			_, err = src.Seek(pos, io.SeekStart)
		}
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", err
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	r.localName = tmp.Name()
	r.localOwned = true
	return r.localName, nil
}

// Result returns the accumulated output bytes for a write request targeting
// the ReturnBytes sentinel, and nil for every other target.
func (r *Request) Result() []byte {
	if r.kind != KindSentinel {
		return nil
	}
	if r.result != nil {
		return r.result
	}
	if r.localOwned && r.localName != "" {
		if b, err := os.ReadFile(r.localName); err == nil && len(b) > 0 {
			return b
		}
	}
	if r.mem != nil {
		return r.mem.Bytes()
	}
	return nil
}

// Finish releases everything the request opened: it flushes buffered write
// targets, closes streams it opened itself, and deletes owned temp files.
// Finish is idempotent; second and later calls are no-ops returning nil.
// Caller-supplied streams are never closed here.
func (r *Request) Finish() error {
	if r.finished {
		return nil
	}
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if r.mode.IsWrite() {
		record(r.flushWrite())
	}
	if r.openedFile != nil {
		record(r.openedFile.Close())
		r.openedFile = nil
	}
	if r.localOwned && r.localName != "" {
		record(os.Remove(r.localName))
	}
	r.file = nil
	r.mem = nil
	r.finished = true
	return firstErr
}

// flushWrite moves buffered output to its final destination. The backend may
// have produced bytes either through File (memory buffer) or by writing the
// LocalFilename temp file; whichever was used wins.
func (r *Request) flushWrite() error {
	var out []byte
	if r.localOwned && r.localName != "" {
		b, err := os.ReadFile(r.localName)
		if err != nil {
			return err
		}
		out = b
	} else if r.mem != nil {
		out = r.mem.Bytes()
	}

	switch r.kind {
	case KindSentinel:
		r.result = out
	case KindStream:
		if r.writer != nil && (r.flushOnFinish || r.localOwned) && len(out) > 0 {
			if _, err := r.writer.Write(out); err != nil {
				return err
			}
		}
	}
	return nil
}
