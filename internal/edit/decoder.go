package edit

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// Outcome is the unit returned per logical edit request: exactly one
// decoded image or exactly one error message, never both.
type Outcome struct {
	Success bool
	Image   []byte
	Err     string
	JobID   string
}

// DataURI renders the decoded image the way the caller receives it.
func (o Outcome) DataURI() string {
	if !o.Success {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(o.Image)
}

type jobOutput struct {
	Image string `json:"image"`
}

// DecodeOutcome turns a terminal job into an Outcome. Only COMPLETED jobs
// are decoded; the other terminal states map deterministically to errors.
func DecodeOutcome(job *Job) (*Outcome, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: no job", ErrMissingArtifact)
	}
	switch job.Status {
	case StatusCompleted:
		return decodeCompleted(job)
	case StatusFailed:
		msg := job.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: job %s: %s", ErrBackend, job.ID, msg)
	case StatusCancelled:
		return nil, fmt.Errorf("%w: job %s was cancelled", ErrBackend, job.ID)
	case StatusTimedOut:
		return nil, fmt.Errorf("%w: job %s; outcome unknown", ErrTimedOut, job.ID)
	default:
		return nil, fmt.Errorf("%w: job %s is not terminal (%s)", ErrBackend, job.ID, job.Status)
	}
}

func decodeCompleted(job *Job) (*Outcome, error) {
	if len(job.Output) == 0 {
		return nil, fmt.Errorf("%w: job %s", ErrMissingArtifact, job.ID)
	}
	var out jobOutput
	if err := json.Unmarshal(job.Output, &out); err != nil {
		return nil, fmt.Errorf("%w: job %s: unreadable output: %v", ErrMissingArtifact, job.ID, err)
	}
	payload, _ := StripDataURI(out.Image)
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: job %s", ErrMissingArtifact, job.ID)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: job %s: artifact is not valid base64: %v", ErrMissingArtifact, job.ID, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: job %s: artifact is not a decodable image: %v", ErrMissingArtifact, job.ID, err)
	}
	return &Outcome{Success: true, Image: data, JobID: job.ID}, nil
}
