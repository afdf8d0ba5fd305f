package imgio

// Options carries backend-specific open/read/write parameters. Keys are
// defined by the individual backends ("quality", "autorotate", ...).
type Options map[string]any

// Int fetches an integer option, accepting int and float64 values.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// Bool fetches a boolean option.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// IndexAll selects every image in a resource. Read stacks them along a new
// leading axis; Properties describes the batch.
const IndexAll = -1

// Backend is the uniform contract every plugin presents after resolution,
// whether natively (modern plugins) or through LegacyAdapter.
//
// Construction happens inside Open via the plugin's factory; a factory that
// cannot handle the request's content returns ErrCannotHandle (wrapped).
// The constructed backend owns its Request exclusively and releases it from
// Close on every exit path.
type Backend interface {
	// Request returns the descriptor this backend owns.
	Request() *Request

	// Read decodes and returns the image at index. IndexAll decodes every
	// image and stacks them along a new leading axis; stacking fails when
	// shapes differ. Out-of-range indices match ErrOutOfRange.
	Read(index int, opts Options) (*NDImage, error)

	// Write encodes images to the request's target. For targets opened
	// against the ReturnBytes sentinel the encoded bytes are returned;
	// for all other targets the result is nil.
	Write(images []*NDImage, opts Options) ([]byte, error)

	// Iter returns a lazy, finite, one-pass iterator over the resource's
	// images in order.
	Iter(opts Options) (Iterator, error)

	// Metadata returns format-specific fields for the image at index.
	// excludeApplied asks the backend to strip fields it already applied
	// to the pixel data (rotation, scaling); backends that cannot make
	// the distinction must reject excludeApplied=true with an error.
	Metadata(index int, excludeApplied bool) (Metadata, error)

	// Properties summarizes shape and dtype without necessarily decoding
	// pixel data. IndexAll describes the whole resource as a batch.
	Properties(index int) (*Properties, error)

	// Close releases the backend and, for natively modern backends,
	// finishes the owned Request. Close is safe to call more than once.
	Close() error
}

// Iterator is a one-pass sequence of decoded images. Next returns
// (nil, io.EOF) after the last image.
type Iterator interface {
	Next() (*NDImage, error)
}

// BackendFactory constructs a modern-contract backend for a request, doing
// whatever content sniffing it needs exactly once. It returns an error
// matching ErrCannotHandle to signal "not my format"; any other error is a
// real failure that aborts resolution.
type BackendFactory func(req *Request, opts Options) (Backend, error)

// LegacyFormat is the predecessor two-phase plugin contract: a boolean
// capability probe followed by separately obtained index-addressable reader
// and writer objects. LegacyAdapter bridges it into the Backend contract.
type LegacyFormat interface {
	// Name is the format's identifier, matching its PluginConfig name.
	Name() string

	// Description is a one-line human-readable summary.
	Description() string

	// Extensions lists the file extensions (without dot) this format claims.
	Extensions() []string

	// Modes reports which historical sub-modes the format supports, as a
	// string of mode characters: 'i' single image, 'I' multiple images,
	// 'v' volume, 'V' multiple volumes.
	Modes() string

	// CanRead and CanWrite are the two-phase capability probes.
	CanRead(req *Request) bool
	CanWrite(req *Request) bool

	// Reader and Writer produce the index-addressable helper objects.
	Reader(req *Request, opts Options) (LegacyReader, error)
	Writer(req *Request, opts Options) (LegacyWriter, error)
}

// LegacyReader is the legacy contract's index-addressable decoder.
type LegacyReader interface {
	// Length returns the number of images in the resource.
	Length() (int, error)

	// GetData decodes the image at index; out-of-range indices return an
	// error matching ErrOutOfRange.
	GetData(index int) (*NDImage, error)

	// GetMeta returns the metadata of the image at index.
	GetMeta(index int) (Metadata, error)

	Close() error
}

// LegacyWriter is the legacy contract's appending encoder.
type LegacyWriter interface {
	Append(im *NDImage) error
	Close() error
}
