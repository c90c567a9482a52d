package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/types"
)

// fakeTool records calls and writes output bytes on download.
type fakeTool struct {
	name   string
	output []byte
	calls  *[]string

	failStep string
	block    string // step that blocks until ctx is done
	gotCfg   SubmitConfig
	uploaded string
	saveTo   string // when set, download lands here instead of dest
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) record(step string) { *f.calls = append(*f.calls, f.name+":"+step) }

func (f *fakeTool) enter(ctx context.Context, step string) error {
	f.record(step)
	if f.block == step {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failStep == step {
		return errors.New("element not found")
	}
	return nil
}

func (f *fakeTool) Upload(ctx context.Context, path string) error {
	if err := f.enter(ctx, StepUpload); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f.uploaded = path
	return nil
}

func (f *fakeTool) Submit(ctx context.Context, cfg SubmitConfig) error {
	f.gotCfg = cfg
	return f.enter(ctx, StepSubmit)
}

func (f *fakeTool) AwaitDownload(ctx context.Context, dest string) (string, error) {
	if err := f.enter(ctx, StepDownload); err != nil {
		return "", err
	}
	out := dest
	if f.saveTo != "" {
		out = f.saveTo
	}
	if err := os.WriteFile(out, f.output, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func testCandidate(t *testing.T) types.Candidate {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.svg")
	if err := os.WriteFile(path, []byte(`<svg width="320"></svg>`), 0o644); err != nil {
		t.Fatal(err)
	}
	return types.Candidate{Path: path, Dir: dir, Name: "logo.svg", DeclaredWidth: 320, TargetWidth: 1000}
}

func TestSession_RunsToolsInOrderAndOverwritesArtifact(t *testing.T) {
	var calls []string
	vector := &fakeTool{name: "vector", output: []byte("raster-large"), calls: &calls}
	compress := &fakeTool{name: "compress", output: []byte("small"), calls: &calls}
	c := testCandidate(t)

	s := NewSession(vector, compress, time.Second, nil)
	res, err := s.Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"vector:upload", "vector:submit", "vector:download",
		"compress:upload", "compress:submit", "compress:download",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}

	wantPath := filepath.Join(c.Dir, "logo.avif")
	if res.ArtifactPath != wantPath || !res.Success {
		t.Errorf("result = %+v, want artifact %s", res, wantPath)
	}
	if vector.uploaded != c.Path {
		t.Errorf("vector uploaded %q, want %q", vector.uploaded, c.Path)
	}
	if compress.uploaded != wantPath {
		t.Errorf("compress uploaded %q, want the intermediate artifact", compress.uploaded)
	}
	if vector.gotCfg.Width != 1000 {
		t.Errorf("vector width = %d, want 1000", vector.gotCfg.Width)
	}
	if compress.gotCfg.Width != 0 {
		t.Errorf("compress width = %d, want 0", compress.gotCfg.Width)
	}

	got, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "small" {
		t.Errorf("artifact = %q, want compressed output", got)
	}
}

func TestSession_MovesDownloadFromElsewhere(t *testing.T) {
	var calls []string
	elsewhere := filepath.Join(t.TempDir(), "3f2c-guid")
	vector := &fakeTool{name: "vector", output: []byte("raster"), calls: &calls}
	compress := &fakeTool{name: "compress", output: []byte("small"), calls: &calls, saveTo: elsewhere}
	c := testCandidate(t)

	res, err := NewSession(vector, compress, time.Second, nil).Run(context.Background(), c)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := os.ReadFile(res.ArtifactPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "small" {
		t.Errorf("artifact = %q, want %q", got, "small")
	}
	if iox.Exists(elsewhere) {
		t.Error("download was not moved")
	}
}

func TestSession_ToolFailureIsSessionError(t *testing.T) {
	var calls []string
	vector := &fakeTool{name: "vector", output: []byte("raster"), calls: &calls}
	compress := &fakeTool{name: "compress", output: []byte("small"), calls: &calls, failStep: StepSubmit}
	c := testCandidate(t)

	_, err := NewSession(vector, compress, time.Second, nil).Run(context.Background(), c)

	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SessionError", err)
	}
	if se.Tool != "compress" || se.Step != StepSubmit {
		t.Errorf("SessionError = %s/%s, want compress/submit", se.Tool, se.Step)
	}
	if IsTimeout(err) {
		t.Error("plain failure reported as timeout")
	}
	if iox.Exists(filepath.Join(c.Dir, "logo.avif")) {
		t.Error("partial artifact left behind")
	}
	if !iox.Exists(c.Path) {
		t.Error("original must be untouched")
	}
}

func TestSession_ExistingArtifactIsLeftAlone(t *testing.T) {
	var calls []string
	vector := &fakeTool{name: "vector", output: []byte("raster"), calls: &calls, failStep: StepUpload}
	compress := &fakeTool{name: "compress", output: []byte("small"), calls: &calls}
	c := testCandidate(t)
	existing := filepath.Join(c.Dir, "logo.avif")
	if err := os.WriteFile(existing, []byte("hand-made"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewSession(vector, compress, time.Second, nil).Run(context.Background(), c)

	var se *SessionError
	if !errors.As(err, &se) || se.Step != StepPrepare || !errors.Is(err, ErrArtifactExists) {
		t.Fatalf("error = %v, want prepare-step ErrArtifactExists", err)
	}
	if len(calls) != 0 {
		t.Errorf("tools ran despite the existing artifact: %v", calls)
	}
	got, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("existing artifact removed: %v", err)
	}
	if string(got) != "hand-made" {
		t.Errorf("existing artifact = %q, want it unchanged", got)
	}
}

func TestChromeConverter_ExistingArtifactFailsBeforeLaunch(t *testing.T) {
	conv, err := NewChromeConverter(ChromeConverterConfig{
		Vector:   DefaultVectorTool(),
		Compress: DefaultCompressTool(),
		Browser:  BrowserOptions{ExecPath: filepath.Join(t.TempDir(), "no-such-chrome")},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := testCandidate(t)
	if err := os.WriteFile(filepath.Join(c.Dir, "logo.avif"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = conv.Convert(context.Background(), c)
	if !errors.Is(err, ErrArtifactExists) {
		t.Fatalf("error = %v, want ErrArtifactExists", err)
	}
}

func TestSession_StepTimeout(t *testing.T) {
	var calls []string
	vector := &fakeTool{name: "vector", calls: &calls, block: StepDownload}
	compress := &fakeTool{name: "compress", calls: &calls}
	c := testCandidate(t)

	_, err := NewSession(vector, compress, 20*time.Millisecond, nil).Run(context.Background(), c)

	var se *SessionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SessionError", err)
	}
	if se.Step != StepDownload {
		t.Errorf("step = %s, want download", se.Step)
	}
	if !IsTimeout(err) {
		t.Errorf("expected timeout, got %v", err)
	}
	if len(calls) != 3 {
		t.Errorf("compress tool must not run after a timeout, calls = %v", calls)
	}
}

func TestSession_ParentCancelIsNotTimeout(t *testing.T) {
	var calls []string
	vector := &fakeTool{name: "vector", calls: &calls, block: StepUpload}
	compress := &fakeTool{name: "compress", calls: &calls}
	c := testCandidate(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := NewSession(vector, compress, time.Minute, nil).Run(ctx, c)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTimeout(err) {
		t.Error("cancellation reported as timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewChromeConverter_Validates(t *testing.T) {
	good := ChromeConverterConfig{Vector: DefaultVectorTool(), Compress: DefaultCompressTool()}
	if _, err := NewChromeConverter(good); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}

	noURL := good
	noURL.Compress.URL = ""
	if _, err := NewChromeConverter(noURL); err == nil {
		t.Error("expected error for missing url")
	}

	noDownload := good
	noDownload.Vector.DownloadLabel = ""
	if _, err := NewChromeConverter(noDownload); err == nil {
		t.Error("expected error for missing download label")
	}
}
