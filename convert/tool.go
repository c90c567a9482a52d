// Package convert drives the two remote tools that turn an SVG into a
// compressed AVIF artifact.
//
// The remote tools sit behind the narrow Tool interface
// (upload, submit, await download). Session sequences them for one
// candidate; ChromeConverter supplies chromedp-backed tools and scopes one
// browser instance to each conversion.
package convert

import (
	"context"

	"github.com/pithecene-io/svgswap/types"
)

// ArtifactExt is the extension of produced artifacts.
const ArtifactExt = ".avif"

// SubmitConfig carries the settings entered into a tool before conversion.
type SubmitConfig struct {
	// Width is the target pixel width. Zero leaves the tool's width untouched.
	Width int
}

// Tool is one remote conversion service.
type Tool interface {
	// Name identifies the tool in logs and errors.
	Name() string
	// Upload opens the tool and hands it the file at path.
	Upload(ctx context.Context, path string) error
	// Submit configures and triggers the conversion.
	Submit(ctx context.Context, cfg SubmitConfig) error
	// AwaitDownload waits for the result, saves it to dest and returns the
	// saved path.
	AwaitDownload(ctx context.Context, dest string) (string, error)
}

// Converter produces an artifact for a candidate.
type Converter interface {
	Convert(ctx context.Context, c types.Candidate) (*types.ConversionResult, error)
}
