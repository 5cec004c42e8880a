package edit

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Stager writes bytes to the storage shared with the backend and returns
// the reference the backend can load them from.
type Stager interface {
	Stage(ctx context.Context, key string, data []byte) (string, error)
}

// JobRunner is the backend job surface the pipeline depends on. *Client
// implements it; tests substitute fakes.
type JobRunner interface {
	Submit(ctx context.Context, payload *JobPayload) (*Job, error)
	AwaitCompletion(ctx context.Context, job *Job, timeout time.Duration) (*Job, error)
}

// Recorder receives job lifecycle notifications. Implementations must not
// fail the pipeline; errors are logged and dropped.
type Recorder interface {
	JobSubmitted(ctx context.Context, jobID string, mode Mode) error
	JobFinished(ctx context.Context, jobID string, status Status, errMsg string, took time.Duration) error
}

// PipelineOptions wires the pipeline's collaborators.
type PipelineOptions struct {
	Resolver *Resolver
	Runner   JobRunner

	// Stager is optional. When present, resolved inputs larger than
	// InlineLimit are staged and referenced by path; everything else is
	// inlined as a data URI.
	Stager      Stager
	InlineLimit int

	// JobTimeout is the wall-clock budget from submission to terminal
	// state.
	JobTimeout time.Duration

	Recorder Recorder
	Logger   *zerolog.Logger
}

const (
	defaultInlineLimit = 5 << 20
	defaultJobTimeout  = 30 * time.Minute
)

// Pipeline runs one edit end to end: resolve inputs, build the workflow,
// submit, await and decode.
type Pipeline struct {
	resolver    *Resolver
	runner      JobRunner
	stager      Stager
	inlineLimit int
	jobTimeout  time.Duration
	recorder    Recorder
	logger      zerolog.Logger
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("edit: pipeline requires a resolver")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("edit: pipeline requires a job runner")
	}
	inlineLimit := opts.InlineLimit
	if inlineLimit <= 0 {
		inlineLimit = defaultInlineLimit
	}
	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Pipeline{
		resolver:    opts.Resolver,
		runner:      opts.Runner,
		stager:      opts.Stager,
		inlineLimit: inlineLimit,
		jobTimeout:  jobTimeout,
		recorder:    opts.Recorder,
		logger:      logger,
	}, nil
}

// Edit runs one item through the pipeline. On success the returned Outcome
// carries the decoded image; every failure returns a classified error with
// a nil Outcome.
func (p *Pipeline) Edit(ctx context.Context, item Item) (*Outcome, error) {
	params := item.Params.Normalized()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if item.Donor.IsZero() {
		return nil, fmt.Errorf("%w: an input image is required", ErrInvalidParameter)
	}

	images, err := p.resolveInputs(ctx, item)
	if err != nil {
		return nil, err
	}

	inputs := make([]ImageInput, len(images))
	roles := []string{"donor", "canvas"}
	for i, img := range images {
		input, err := p.toInput(ctx, img, roles[i])
		if err != nil {
			return nil, err
		}
		inputs[i] = input
	}

	payload, err := BuildWorkflow(inputs, params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	job, err := p.runner.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	p.record(ctx, func(rec Recorder) error { return rec.JobSubmitted(ctx, job.ID, item.Mode) })

	job, err = p.runner.AwaitCompletion(ctx, job, p.jobTimeout)
	if err != nil {
		p.record(ctx, func(rec Recorder) error {
			return rec.JobFinished(ctx, job.ID, job.Status, err.Error(), time.Since(start))
		})
		return nil, err
	}

	outcome, err := DecodeOutcome(job)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	p.record(ctx, func(rec Recorder) error {
		return rec.JobFinished(ctx, job.ID, job.Status, errMsg, time.Since(start))
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info().Str("job_id", job.ID).Str("mode", string(item.Mode)).Dur("took", time.Since(start)).Msg("edit: completed")
	return outcome, nil
}

// resolveInputs resolves donor and canvas concurrently. Either failure
// aborts the request with that resolver's error.
func (p *Pipeline) resolveInputs(ctx context.Context, item Item) ([]*ResolvedImage, error) {
	refs := []ImageReference{item.Donor}
	if item.Canvas != nil {
		refs = append(refs, *item.Canvas)
	}
	images := make([]*ResolvedImage, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			img, err := p.resolver.Resolve(gctx, ref)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (p *Pipeline) toInput(ctx context.Context, img *ResolvedImage, role string) (ImageInput, error) {
	if p.stager != nil && len(img.Data) > p.inlineLimit {
		key := stagingKey(role, img.Name)
		ref, err := p.stager.Stage(ctx, key, img.Data)
		if err != nil {
			return ImageInput{}, fmt.Errorf("%w: stage %s image: %v", ErrSubmission, role, err)
		}
		p.logger.Debug().Str("role", role).Str("key", key).Msg("edit: staged input image")
		return ImageInput{Path: ref}, nil
	}
	mime := img.MIME
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return ImageInput{Inline: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)}, nil
}

func stagingKey(role, name string) string {
	ext := path.Ext(name)
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("input/qwen/%s_%s%s", uuid.NewString(), role, ext)
}

func (p *Pipeline) record(ctx context.Context, fn func(Recorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		p.logger.Warn().Err(err).Msg("edit: job history write failed")
	}
}
