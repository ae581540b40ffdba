package media

import "fmt"

// Stage names the ingestion step that failed.
type Stage string

const (
	StageDownload Stage = "download"
	StageUpload   Stage = "upload"
	StageRegister Stage = "register"
)

// IngestError is a typed failure from Ingest. Callers branch on Stage to
// decide what to tell the user; a failed ingest never silently drops the
// attachment.
type IngestError struct {
	Stage Stage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("media ingest failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func ingestErr(stage Stage, format string, args ...any) *IngestError {
	return &IngestError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
