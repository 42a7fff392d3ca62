// Package validate implements the parameter validation and
// defaulting pass run before an encoder/decoder session is opened
// (spec.md §4.9, C11): it repairs defaults in place and returns a
// closed set of error codes plus free-form warnings rather than
// failing on the first questionable field.
package validate

import "fmt"

// Code is the closed set of validation outcomes (spec.md §4.9).
type Code int

const (
	CodeOK Code = iota
	CodeInvalidParam
	CodeErrorPicWidth
	CodeErrorPicHeight
	CodeErrorFrate
	CodeErrorBrate
	CodeErrorGOPPreset
	CodeErrorCustomGOP
	CodeErrorLookAheadDepth
	CodeErrorVBVBufferSize
	CodeErrorIntraPeriod
	CodeErrorRCEnable
	CodeWarn
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidParam:
		return "INVALID_PARAM"
	case CodeErrorPicWidth:
		return "ERROR_PIC_WIDTH"
	case CodeErrorPicHeight:
		return "ERROR_PIC_HEIGHT"
	case CodeErrorFrate:
		return "ERROR_FRATE"
	case CodeErrorBrate:
		return "ERROR_BRATE"
	case CodeErrorGOPPreset:
		return "ERROR_GOP_PRESET"
	case CodeErrorCustomGOP:
		return "ERROR_CUSTOM_GOP"
	case CodeErrorLookAheadDepth:
		return "ERROR_LOOK_AHEAD_DEPTH"
	case CodeErrorVBVBufferSize:
		return "ERROR_VBV_BUFFER_SIZE"
	case CodeErrorIntraPeriod:
		return "ERROR_INTRA_PERIOD"
	case CodeErrorRCEnable:
		return "ERROR_RCENABLE"
	case CodeWarn:
		return "WARN"
	default:
		return "UNKNOWN"
	}
}

// Error is a validation failure: a closed code plus a free-form
// message naming the offending field.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate: %s: %s", e.Code, e.Msg)
}

func fail(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Warning is a non-fatal note surfaced alongside a successfully
// validated (and possibly repaired) parameter set.
type Warning struct {
	Msg string
}
