package document

import "fmt"

// DownloadError describes a failed acquisition. Code is the HTTP status the
// service surfaces for it.
type DownloadError struct {
	Kind   string
	Code   int
	Reason string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("download %s: %s", e.Kind, e.Reason)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ErrBadFilename reports a URL from which no usable filename could be derived.
func ErrBadFilename(url string) *DownloadError {
	return &DownloadError{Kind: "bad-filename", Code: 404, Reason: fmt.Sprintf("no filename for %q", url)}
}

// ErrBadResponse reports a non-success HTTP response; its status propagates.
func ErrBadResponse(status int, reason string) *DownloadError {
	return &DownloadError{Kind: "bad-response", Code: status, Reason: reason}
}

// ErrForbidden reports a source that refused access.
func ErrForbidden(reason string) *DownloadError {
	return &DownloadError{Kind: "forbidden", Code: 403, Reason: reason}
}

// ErrUnauthorized reports missing or rejected credentials.
func ErrUnauthorized(reason string) *DownloadError {
	return &DownloadError{Kind: "unauthorized", Code: 401, Reason: reason}
}

// ErrNetwork reports a transport-level failure reaching the source.
func ErrNetwork(err error) *DownloadError {
	return &DownloadError{Kind: "network", Code: 502, Reason: "network failure", Err: err}
}

// ErrDownloadUnexpected wraps an internal failure during acquisition.
func ErrDownloadUnexpected(err error) *DownloadError {
	return &DownloadError{Kind: "unexpected", Code: 500, Reason: "unexpected failure", Err: err}
}

// ExtractError describes a failed extraction.
type ExtractError struct {
	Kind   string
	Code   int
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Kind, e.Reason)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ErrExtractFailed reports that a named extraction method could not process
// the payload.
func ErrExtractFailed(method, reason string) *ExtractError {
	return &ExtractError{Kind: "fail", Code: 500, Reason: fmt.Sprintf("%s: %s", method, reason)}
}

// ErrSecurityViolation reports an archive member that would escape the
// extraction root or otherwise attack the host. It is distinct from
// ErrExtractFailed so callers can tell hostile input from broken input.
func ErrSecurityViolation(archiveType, reason string) *ExtractError {
	return &ExtractError{Kind: "security-violation", Code: 403, Reason: fmt.Sprintf("%s: %s", archiveType, reason)}
}

// ErrExpectedTranscript reports a payload that is not audio or video but was
// routed to transcription.
func ErrExpectedTranscript(mime string) *ExtractError {
	return &ExtractError{Kind: "expected-transcript", Code: 400, Reason: fmt.Sprintf("cannot transcribe %s", mime)}
}

// ErrExtractUnexpected wraps an internal failure during extraction.
func ErrExtractUnexpected(err error) *ExtractError {
	return &ExtractError{Kind: "unexpected", Code: 500, Reason: "unexpected failure", Err: err}
}
