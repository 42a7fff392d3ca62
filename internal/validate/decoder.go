package validate

import "github.com/netint/go-xcoder/internal/constants"

// Codec identifies the decoder's input bitstream format. Only VP9
// changes session-open behavior (it needs an attached scaler, spec.md
// §9 "Cyclic structures"); the others are accepted for completeness.
type Codec uint8

const (
	CodecH264 Codec = iota
	CodecH265
	CodecVP9
	CodecAV1
)

// DecoderParams is the subset of decoder configuration the validator
// acts on. Decode-side validation is far lighter than encode-side:
// the bitstream itself carries most of the geometry, so only the
// caller-supplied hints are checked here.
type DecoderParams struct {
	Codec  Codec
	Width  int
	Height int

	LowDelay bool

	SWFrameMode bool
}

// ValidateDecoder validates and defaults p.
func ValidateDecoder(p DecoderParams) (DecoderParams, []Warning, error) {
	if p.Width != 0 && (p.Width < constants.XcoderMinEncPicWidth || p.Width > constants.XcoderMaxEncPicWidth) {
		return p, nil, fail(CodeErrorPicWidth, "width %d out of range [%d, %d]", p.Width, constants.XcoderMinEncPicWidth, constants.XcoderMaxEncPicWidth)
	}
	if p.Height != 0 && (p.Height < constants.XcoderMinEncPicHeight || p.Height > constants.XcoderMaxEncPicHeight) {
		return p, nil, fail(CodeErrorPicHeight, "height %d out of range [%d, %d]", p.Height, constants.XcoderMinEncPicHeight, constants.XcoderMaxEncPicHeight)
	}
	return p, nil, nil
}
