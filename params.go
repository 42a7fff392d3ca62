package xcoder

import (
	"github.com/netint/go-xcoder/internal/session"
	"github.com/netint/go-xcoder/internal/validate"
)

// DecoderParams configures a decode session (spec.md §4.5.1, §4.9).
type DecoderParams = validate.DecoderParams

// DefaultDecoderParams returns zero-valued decoder params: width and
// height are recovered from the bitstream itself, so 0 means "let the
// stream decide."
func DefaultDecoderParams() DecoderParams {
	return DecoderParams{}
}

// EncoderParams configures an encode session (spec.md §4.5.2, §4.9).
type EncoderParams = validate.EncoderParams

// PicType names one GOP slot's picture type in a CustomGOP.
type PicType = validate.PicType

const (
	PicTypeI = validate.PicTypeI
	PicTypeP = validate.PicTypeP
	PicTypeB = validate.PicTypeB
)

// GOPEntry is one entry of a custom GOP structure.
type GOPEntry = validate.GOPEntry

// DefaultEncoderParams returns a conservative 1080p30 H.264 baseline
// configuration a caller can tune before OpenEncoder.
func DefaultEncoderParams() EncoderParams {
	return EncoderParams{
		BitDepth:     8,
		Width:        1920,
		Height:       1080,
		FrameRateNum: 30,
		FrameRateDen: 1,
		Bitrate:      4_000_000,
		GOPPreset:    1,
		IntraPeriod:  30,
	}
}

// BlitMode selects how a Scaler session composes multiple inputs.
type BlitMode = session.BlitMode

const (
	BlitSimple = session.BlitSimple
	BlitStack  = session.BlitStack
)

// ScalerParams configures a scaler session (spec.md §4.5.3).
type ScalerParams = session.ScalerParams

// DefaultScalerParams returns a single-input simple-blit configuration.
func DefaultScalerParams() ScalerParams {
	return ScalerParams{Mode: BlitSimple, NumInputs: 1}
}

// FrameConfig describes one output frame a Scaler or AI AllocFrame
// call should produce.
type FrameConfig = session.FrameConfig

// PoolKind selects the memory pool an Uploader session draws from.
type PoolKind = session.PoolKind

const (
	PoolKindDevice = session.PoolKindDevice
	PoolKindP2P    = session.PoolKindP2P
)

// UploaderParams configures an uploader session (spec.md §4.5.4).
type UploaderParams = session.UploaderParams

// DefaultUploaderParams returns a modestly sized device-pool
// configuration; callers on a P2P-capable host can switch PoolKind to
// PoolKindP2P.
func DefaultUploaderParams() UploaderParams {
	return UploaderParams{PoolSize: 8, PoolKind: PoolKindDevice}
}
