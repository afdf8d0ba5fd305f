package imgio

import "fmt"

// Mode declares the I/O intent of a request. The plain ModeRead/ModeWrite
// values are what new code should use; the suffixed variants additionally
// carry a historical sub-mode hint (single image, multiple images, volume,
// don't care) that only legacy-contract formats consult.
type Mode string

const (
	ModeRead  Mode = "r"
	ModeWrite Mode = "w"

	// Deprecated: sub-mode hints kept for legacy-contract formats.
	ModeReadSingle  Mode = "ri"
	ModeReadMulti   Mode = "rI"
	ModeReadVolume  Mode = "rv"
	ModeReadAny     Mode = "r?"
	ModeWriteSingle Mode = "wi"
	ModeWriteMulti  Mode = "wI"
	ModeWriteVolume Mode = "wv"
	ModeWriteAny    Mode = "w?"
)

// IsRead reports whether the mode is in the read family.
func (m Mode) IsRead() bool { return len(m) > 0 && m[0] == 'r' }

// IsWrite reports whether the mode is in the write family.
func (m Mode) IsWrite() bool { return len(m) > 0 && m[0] == 'w' }

// SubMode returns the historical sub-mode hint character ('i', 'I', 'v',
// '?') or 0 when none was given.
func (m Mode) SubMode() byte {
	if len(m) < 2 {
		return 0
	}
	return m[1]
}

// valid reports whether m is one of the defined modes.
func (m Mode) valid() bool {
	switch m {
	case ModeRead, ModeWrite,
		ModeReadSingle, ModeReadMulti, ModeReadVolume, ModeReadAny,
		ModeWriteSingle, ModeWriteMulti, ModeWriteVolume, ModeWriteAny:
		return true
	}
	return false
}

func (m Mode) String() string {
	if m.IsRead() {
		return fmt.Sprintf("read (%q)", string(m))
	}
	return fmt.Sprintf("write (%q)", string(m))
}
