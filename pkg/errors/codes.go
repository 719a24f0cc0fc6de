package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeCancelled       ErrorCode = "COMMON_017"
	ErrCodeNotImplemented  ErrorCode = "COMMON_016"
	ErrCodeExternalService ErrorCode = "COMMON_014"
)

// Aliases used at call sites.
const (
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeValidation     = ErrCodeValidation
	CodeCancelled      = ErrCodeCancelled
	CodeNotImplemented = ErrCodeNotImplemented
)

// Configuration Error Codes
const (
	ErrCodeConfigFileNotFound ErrorCode = "CFG_001"
	ErrCodeConfigParse        ErrorCode = "CFG_002"
	ErrCodeConfigValidation   ErrorCode = "CFG_003"
	ErrCodeMissingEntry       ErrorCode = "CFG_004"
	ErrCodeMalformedEntry     ErrorCode = "CFG_005"
	ErrCodeDegenerateRegion   ErrorCode = "CFG_006"
	ErrCodeInvalidDivisions   ErrorCode = "CFG_007"
	ErrCodeUnknownPolicy      ErrorCode = "CFG_008"
)

// Mesh Input Error Codes
const (
	ErrCodeMeshRead          ErrorCode = "MESH_001"
	ErrCodeMeshParse         ErrorCode = "MESH_002"
	ErrCodeMeshEmpty         ErrorCode = "MESH_003"
	ErrCodeInvalidCenter     ErrorCode = "MESH_004"
	ErrCodeUnsupportedFormat ErrorCode = "MESH_005"
)

// Decomposition Error Codes
const (
	ErrCodeCellOutOfRange ErrorCode = "DEC_001"
	ErrCodeIndexOverflow  ErrorCode = "DEC_002"
	ErrCodeLayoutInvalid  ErrorCode = "DEC_003"
)

// Persistence Error Codes
const (
	ErrCodeWriteFailed ErrorCode = "IO_001"
	ErrCodeStorage     ErrorCode = "STO_001"
	ErrCodeBucket      ErrorCode = "STO_002"
	ErrCodeMetricsPush ErrorCode = "MET_001"
)

// Short aliases for domain codes.
const (
	CodeConfigFileNotFound = ErrCodeConfigFileNotFound
	CodeConfigParse        = ErrCodeConfigParse
	CodeConfigValidation   = ErrCodeConfigValidation
	CodeMissingEntry       = ErrCodeMissingEntry
	CodeMalformedEntry     = ErrCodeMalformedEntry
	CodeDegenerateRegion   = ErrCodeDegenerateRegion
	CodeInvalidDivisions   = ErrCodeInvalidDivisions
	CodeUnknownPolicy      = ErrCodeUnknownPolicy

	CodeMeshRead          = ErrCodeMeshRead
	CodeMeshParse         = ErrCodeMeshParse
	CodeMeshEmpty         = ErrCodeMeshEmpty
	CodeInvalidCenter     = ErrCodeInvalidCenter
	CodeUnsupportedFormat = ErrCodeUnsupportedFormat

	CodeCellOutOfRange = ErrCodeCellOutOfRange
	CodeIndexOverflow  = ErrCodeIndexOverflow
	CodeLayoutInvalid  = ErrCodeLayoutInvalid

	CodeWriteFailed = ErrCodeWriteFailed
	CodeStorage     = ErrCodeStorage
	CodeBucket      = ErrCodeBucket
	CodeMetricsPush = ErrCodeMetricsPush
)

// ExitCode maps an ErrorCode family to a process exit status for the CLI.
// Configuration problems exit 2, input problems 3, decomposition 4,
// persistence 5, everything else 1.
func ExitCode(code ErrorCode) int {
	s := string(code)
	switch {
	case code == CodeOK:
		return 0
	case hasPrefix(s, "CFG_"):
		return 2
	case hasPrefix(s, "MESH_"):
		return 3
	case hasPrefix(s, "DEC_"):
		return 4
	case hasPrefix(s, "IO_"), hasPrefix(s, "STO_"):
		return 5
	default:
		return 1
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
