package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func baseParams() EncoderParams {
	return EncoderParams{
		Profile:      2,
		BitDepth:     8,
		Width:        1920,
		Height:       1080,
		FrameRateNum: 30,
		FrameRateDen: 1,
		Bitrate:      4_000_000,
	}
}

func TestValidateEncoderAcceptsBaseParams(t *testing.T) {
	p, warnings, err := ValidateEncoder(baseParams())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 1920, p.Width)
}

func TestValidateEncoderRejectsWidth(t *testing.T) {
	p := baseParams()
	p.Width = 12
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorPicWidth, verr.Code)
}

func TestValidateEncoderRejectsHeight(t *testing.T) {
	p := baseParams()
	p.Height = 0
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorPicHeight, verr.Code)
}

func TestValidateEncoderRejectsFrameRate(t *testing.T) {
	p := baseParams()
	p.FrameRateNum = 1000
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorFrate, verr.Code)
}

func TestValidateEncoderRejectsBitrate(t *testing.T) {
	p := baseParams()
	p.Bitrate = 0
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorBrate, verr.Code)
}

func TestValidateEncoderRepairsProfileFromBitDepth(t *testing.T) {
	p := baseParams()
	p.Profile = 0
	p.BitDepth = 10
	out, _, err := ValidateEncoder(p)
	require.NoError(t, err)
	require.Equal(t, profileFor10Bit, out.Profile)
}

func TestValidateEncoderBaselineForbidsBFrames(t *testing.T) {
	p := baseParams()
	p.Profile = h264BaselineProfile
	p.CustomGOP = []GOPEntry{{Type: PicTypeI}, {Type: PicTypeB}}
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorCustomGOP, verr.Code)
}

func TestValidateEncoderBaselineForcesCAVLCAndDisables8x8(t *testing.T) {
	p := baseParams()
	p.Profile = h264BaselineProfile
	p.EntropyCodingCABAC = true
	p.Transform8x8Enable = true
	out, _, err := ValidateEncoder(p)
	require.NoError(t, err)
	require.False(t, out.EntropyCodingCABAC)
	require.False(t, out.Transform8x8Enable)
}

func TestValidateEncoderAV1RequiresProfile1(t *testing.T) {
	p := baseParams()
	p.IsAV1 = true
	p.Profile = 2
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeInvalidParam, verr.Code)
}

func TestValidateEncoderAV1ClampsLevel(t *testing.T) {
	p := baseParams()
	p.IsAV1 = true
	p.Profile = 1
	p.AV1Level = 5
	out, _, err := ValidateEncoder(p)
	require.NoError(t, err)
	require.Equal(t, 20, out.AV1Level)
}

func TestValidateEncoderAV1RejectsConformanceWindow(t *testing.T) {
	p := baseParams()
	p.IsAV1 = true
	p.Profile = 1
	p.ConformanceWinLeft = 4
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeInvalidParam, verr.Code)
}

func TestValidateEncoderGdrDurationRules(t *testing.T) {
	p := baseParams()
	p.GdrDuration = 30
	p.IntraPeriod = 10
	p.LookAheadDepth = 5
	out, warnings, err := ValidateEncoder(p)
	require.NoError(t, err)
	require.Equal(t, 30, out.IntraPeriod)
	require.Zero(t, out.LookAheadDepth)
	require.NotEmpty(t, warnings)
}

func TestValidateEncoderGdrDurationForbidsBFrames(t *testing.T) {
	p := baseParams()
	p.GdrDuration = 30
	p.CustomGOP = []GOPEntry{{Type: PicTypeB}}
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorCustomGOP, verr.Code)
}

func TestValidateEncoderLookAheadForbidsLowDelayGOP(t *testing.T) {
	p := baseParams()
	p.LookAheadDepth = 2
	p.GOPPreset = 1
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorGOPPreset, verr.Code)
}

func TestValidateEncoderLookAheadAndLongTermRefMutuallyExclusive(t *testing.T) {
	p := baseParams()
	p.LookAheadDepth = 2
	p.GOPPreset = 2
	p.LongTermReferenceEnable = true
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorLookAheadDepth, verr.Code)
}

func TestValidateEncoderMaxFrameSizeRequiresLowDelay(t *testing.T) {
	p := baseParams()
	p.GOPPreset = 2
	p.MaxFrameSize = 1000
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeInvalidParam, verr.Code)
}

func TestValidateEncoderMaxFrameSizeDefaultedInLowDelay(t *testing.T) {
	p := baseParams()
	p.GOPPreset = 1
	out, _, err := ValidateEncoder(p)
	require.NoError(t, err)
	require.Greater(t, out.MaxFrameSize, 0)
}

func TestValidateEncoderHRDRequiresVBVBufferSize(t *testing.T) {
	p := baseParams()
	p.HRDEnable = true
	_, _, err := ValidateEncoder(p)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorVBVBufferSize, verr.Code)
}

func TestValidateEncoderHRDForcesRCEnable(t *testing.T) {
	p := baseParams()
	p.HRDEnable = true
	p.VBVBufferSize = 10000
	out, _, err := ValidateEncoder(p)
	require.NoError(t, err)
	require.True(t, out.RCEnable)
}

func TestValidateDecoderAcceptsZeroHints(t *testing.T) {
	_, _, err := ValidateDecoder(DecoderParams{})
	require.NoError(t, err)
}

func TestValidateDecoderRejectsBadWidth(t *testing.T) {
	_, _, err := ValidateDecoder(DecoderParams{Width: 4})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, CodeErrorPicWidth, verr.Code)
}
