package types

import "fmt"

// ErrorCode 错误码
type ErrorCode string

const (
	// 通用错误码
	ErrCodeUnknown          ErrorCode = "UNKNOWN_ERROR"
	ErrCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"

	// 诊断相关错误码
	ErrCodeDiagnosisNotFound ErrorCode = "DIAGNOSIS_NOT_FOUND"
	ErrCodeDiagnosisFailed   ErrorCode = "DIAGNOSIS_FAILED"
	ErrCodeDiagnosisTimeout  ErrorCode = "DIAGNOSIS_TIMEOUT"
	ErrCodeDiagnosisStopped  ErrorCode = "DIAGNOSIS_STOPPED"
	ErrCodeReportNotReady    ErrorCode = "REPORT_NOT_READY"

	// 平台相关错误码
	ErrCodePlatformUnavailable ErrorCode = "PLATFORM_UNAVAILABLE"
	ErrCodeModelNotConfigured  ErrorCode = "MODEL_NOT_CONFIGURED"

	// 死信相关错误码
	ErrCodeDeadLetterNotFound ErrorCode = "DEAD_LETTER_NOT_FOUND"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError 创建应用错误
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WithDetails 附加错误详情
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 附加原始错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}
