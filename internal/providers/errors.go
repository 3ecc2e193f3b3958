package providers

import "fmt"

// UploadNotSupportedError indicates the provider or model cannot accept
// whole-document input. Callers fall back to the chunked strategy.
type UploadNotSupportedError struct {
	Reason string
}

func (e *UploadNotSupportedError) Error() string {
	return fmt.Sprintf("document upload not supported: %s", e.Reason)
}

// UploadFailedError indicates the upload itself failed mechanically.
// Callers fall back to the chunked strategy.
type UploadFailedError struct {
	Reason string
	Err    error
}

func (e *UploadFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document upload failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("document upload failed: %s", e.Reason)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// TransientError indicates a retryable network or server condition
// (timeouts, 429, 5xx). Callers retry a bounded number of times.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient provider error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient provider error: %s", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }
