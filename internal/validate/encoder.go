package validate

import "github.com/netint/go-xcoder/internal/constants"

// PicType is one GOP slot's picture type.
type PicType int

const (
	PicTypeI PicType = iota
	PicTypeP
	PicTypeB
)

// GOPEntry is one entry of a custom GOP structure.
type GOPEntry struct {
	Type PicType
}

// EncoderParams is the subset of encoder configuration the validator
// acts on (spec.md §4.9). Fields left at their zero value are
// defaulted, not rejected, except where noted.
type EncoderParams struct {
	Profile  int // 0 = unset, repaired from BitDepth
	BitDepth int // 8 or 10

	Width  int
	Height int

	FrameRateNum int
	FrameRateDen int

	Bitrate int

	RCEnable    bool
	HRDEnable   bool
	FillerEnable bool
	VBVBufferSize int

	GOPPreset  int
	CustomGOP  []GOPEntry
	IntraPeriod int

	LookAheadDepth int
	GdrDuration    int

	EntropyCodingCABAC bool
	Transform8x8Enable bool

	LongTermReferenceEnable bool

	MaxFrameSize int
	LowDelay     bool

	IsAV1                bool
	AV1Level             int
	ConformanceWinLeft   int
	ConformanceWinTop    int
	ConformanceWinRight  int
	ConformanceWinBottom int
}

const (
	av1RequiredProfile = 1
	h264BaselineProfile = 1

	profileFor8Bit  = 1
	profileFor10Bit = 2
)

// ValidateEncoder validates p, repairs defaultable fields in place,
// and returns any non-fatal warnings alongside the (possibly
// repaired) params. A non-nil error is always a *Error with one of
// the closed Code values.
func ValidateEncoder(p EncoderParams) (EncoderParams, []Warning, error) {
	var warnings []Warning

	if p.Width < constants.XcoderMinEncPicWidth || p.Width > constants.XcoderMaxEncPicWidth {
		return p, nil, fail(CodeErrorPicWidth, "width %d out of range [%d, %d]", p.Width, constants.XcoderMinEncPicWidth, constants.XcoderMaxEncPicWidth)
	}
	if p.Height < constants.XcoderMinEncPicHeight || p.Height > constants.XcoderMaxEncPicHeight {
		return p, nil, fail(CodeErrorPicHeight, "height %d out of range [%d, %d]", p.Height, constants.XcoderMinEncPicHeight, constants.XcoderMaxEncPicHeight)
	}

	if p.FrameRateDen <= 0 {
		p.FrameRateDen = 1
	}
	if p.FrameRateNum <= 0 || p.FrameRateNum/p.FrameRateDen > constants.MaxFramerate {
		return p, nil, fail(CodeErrorFrate, "frame rate %d/%d invalid", p.FrameRateNum, p.FrameRateDen)
	}

	if p.Bitrate < constants.MinBitrate || p.Bitrate > constants.MaxBitrate {
		return p, nil, fail(CodeErrorBrate, "bitrate %d out of range [%d, %d]", p.Bitrate, constants.MinBitrate, constants.MaxBitrate)
	}

	if p.Profile == 0 {
		if p.BitDepth == 10 {
			p.Profile = profileFor10Bit
		} else {
			p.Profile = profileFor8Bit
		}
	}

	if !p.IsAV1 && p.Profile == h264BaselineProfile {
		if containsB(p.CustomGOP) {
			return p, nil, fail(CodeErrorCustomGOP, "baseline profile forbids B-frames in custom GOP")
		}
		p.EntropyCodingCABAC = false
		p.Transform8x8Enable = false
	}

	if p.IsAV1 {
		if p.Profile != av1RequiredProfile {
			return p, nil, fail(CodeInvalidParam, "av1 requires profile %d, got %d", av1RequiredProfile, p.Profile)
		}
		if p.AV1Level != 0 {
			if p.AV1Level < constants.AV1MinLevel {
				p.AV1Level = constants.AV1MinLevel
			} else if p.AV1Level > constants.AV1MaxLevel {
				p.AV1Level = constants.AV1MaxLevel
			}
		}
		if p.ConformanceWinLeft != 0 || p.ConformanceWinTop != 0 || p.ConformanceWinRight != 0 || p.ConformanceWinBottom != 0 {
			return p, nil, fail(CodeInvalidParam, "av1 requires zero conformance window")
		}
	}

	if p.GdrDuration > 0 {
		if containsB(p.CustomGOP) {
			return p, nil, fail(CodeErrorCustomGOP, "gdr duration forbids B-frames")
		}
		if p.IntraPeriod < p.GdrDuration {
			p.IntraPeriod = p.GdrDuration
		}
		if p.LookAheadDepth > 0 {
			warnings = append(warnings, Warning{Msg: "gdr duration disables look-ahead"})
			p.LookAheadDepth = 0
		}
	}

	if p.LookAheadDepth > 0 {
		if constants.LowDelayGOPPresets[p.GOPPreset] {
			return p, nil, fail(CodeErrorGOPPreset, "2-pass forbids low-delay gop preset %d", p.GOPPreset)
		}
		if p.LongTermReferenceEnable {
			return p, nil, fail(CodeErrorLookAheadDepth, "long-term-reference and lookahead are mutually exclusive")
		}
	}

	p.LowDelay = constants.LowDelayGOPPresets[p.GOPPreset]
	if p.MaxFrameSize > 0 && !p.LowDelay {
		return p, nil, fail(CodeInvalidParam, "maxFrameSize is valid only with low-delay mode")
	}
	if p.MaxFrameSize == 0 && p.LowDelay {
		uncompressedSize := p.Width * p.Height * 3 / 2
		p.MaxFrameSize = uncompressedSize / 2 / 2000
		minFrameSize := (p.Bitrate / (p.FrameRateNum / p.FrameRateDen) / 8) / 2
		if p.MaxFrameSize < minFrameSize {
			p.MaxFrameSize = minFrameSize
		}
	}

	if p.HRDEnable || p.FillerEnable {
		p.RCEnable = true
		if p.VBVBufferSize <= 0 {
			return p, nil, fail(CodeErrorVBVBufferSize, "hrd/filler requires a non-zero vbv buffer size")
		}
	}

	return p, warnings, nil
}

func containsB(gop []GOPEntry) bool {
	for _, e := range gop {
		if e.Type == PicTypeB {
			return true
		}
	}
	return false
}
