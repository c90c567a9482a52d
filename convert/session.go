package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/log"
	"github.com/pithecene-io/svgswap/types"
)

// DefaultStepTimeout bounds every remote interaction.
const DefaultStepTimeout = 5 * time.Minute

// Session runs the vector tool then the compression tool for one candidate.
// Both tools save to the same artifact path; the compressed result
// overwrites the intermediate raster.
type Session struct {
	vector      Tool
	compress    Tool
	stepTimeout time.Duration
	logger      *log.Logger
}

// NewSession creates a session over two tools. A non-positive stepTimeout
// means DefaultStepTimeout. A nil logger discards.
func NewSession(vector, compress Tool, stepTimeout time.Duration, logger *log.Logger) *Session {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Session{
		vector:      vector,
		compress:    compress,
		stepTimeout: stepTimeout,
		logger:      logger.Named("session"),
	}
}

// Run converts c. An existing file at the artifact path fails the
// session before any tool runs and is never touched. On a later error the
// partial artifact written by the session is removed. Errors are
// *SessionError.
func (s *Session) Run(ctx context.Context, c types.Candidate) (*types.ConversionResult, error) {
	dest := c.ArtifactPath(ArtifactExt)
	if err := checkArtifactFree(dest); err != nil {
		return nil, err
	}

	if err := s.runTool(ctx, s.vector, c.Path, SubmitConfig{Width: c.TargetWidth}, dest); err != nil {
		_ = iox.RemoveIfExists(dest)
		return nil, err
	}
	if err := s.runTool(ctx, s.compress, dest, SubmitConfig{}, dest); err != nil {
		_ = iox.RemoveIfExists(dest)
		return nil, err
	}

	if !iox.Exists(dest) {
		return nil, &SessionError{
			Tool: s.compress.Name(),
			Step: StepVerify,
			Err:  fmt.Errorf("artifact %s missing after download", dest),
		}
	}

	return &types.ConversionResult{ArtifactPath: dest, Success: true}, nil
}

func checkArtifactFree(dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return &SessionError{Tool: "session", Step: StepPrepare, Err: fmt.Errorf("%w: %s", ErrArtifactExists, dest)}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &SessionError{Tool: "session", Step: StepPrepare, Err: err}
	}
	return nil
}

func (s *Session) runTool(ctx context.Context, tool Tool, input string, cfg SubmitConfig, dest string) error {
	fields := map[string]any{"tool": tool.Name(), "input": input}
	s.logger.Debug("tool started", fields)

	if err := s.step(ctx, tool, StepUpload, func(ctx context.Context) error {
		return tool.Upload(ctx, input)
	}); err != nil {
		return err
	}
	if err := s.step(ctx, tool, StepSubmit, func(ctx context.Context) error {
		return tool.Submit(ctx, cfg)
	}); err != nil {
		return err
	}

	var saved string
	if err := s.step(ctx, tool, StepDownload, func(ctx context.Context) error {
		var err error
		saved, err = tool.AwaitDownload(ctx, dest)
		return err
	}); err != nil {
		return err
	}
	if saved != dest {
		if err := iox.MoveFile(saved, dest); err != nil {
			return &SessionError{Tool: tool.Name(), Step: StepDownload, Err: err}
		}
	}

	s.logger.Debug("tool finished", map[string]any{"tool": tool.Name(), "artifact": dest})
	return nil
}

func (s *Session) step(ctx context.Context, tool Tool, step string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, s.stepTimeout, err)
	}
	return &SessionError{Tool: tool.Name(), Step: step, Err: err}
}
