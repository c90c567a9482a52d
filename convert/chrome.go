package convert

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/pithecene-io/svgswap/log"
	"github.com/pithecene-io/svgswap/types"
)

// ToolConfig names a remote tool's page and its UI affordances. Empty
// labels skip the corresponding interaction.
type ToolConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// UploadLabel names the upload region holding the file input.
	UploadLabel string `yaml:"upload_label"`
	// SettingsLabel names the button that reveals the settings panel.
	SettingsLabel string `yaml:"settings_label"`
	// SliderLabel names the slider driven to its maximum.
	SliderLabel string `yaml:"slider_label"`
	// WidthLabel names the width text field.
	WidthLabel string `yaml:"width_label"`
	// SubmitLabel names the button that starts conversion.
	SubmitLabel string `yaml:"submit_label"`
	// DownloadLabel names the download button or link.
	DownloadLabel string `yaml:"download_label"`
	// UseSlider drives the slider even when SliderLabel is empty
	// (first slider on the page).
	UseSlider bool `yaml:"use_slider"`
}

// DefaultVectorTool is the built-in SVG to raster service.
func DefaultVectorTool() ToolConfig {
	return ToolConfig{
		Name:          "vector",
		URL:           "https://cloudconvert.com/svg-to-avif",
		UploadLabel:   "Select File",
		SettingsLabel: "Options",
		SliderLabel:   "Quality",
		WidthLabel:    "Width",
		SubmitLabel:   "Convert",
		DownloadLabel: "Download",
	}
}

// DefaultCompressTool is the built-in raster compression service.
func DefaultCompressTool() ToolConfig {
	return ToolConfig{
		Name:          "compress",
		URL:           "https://squoosh.app/",
		UploadLabel:   "Drop OR Paste",
		SliderLabel:   "Quality",
		DownloadLabel: "Download",
	}
}

// ChromeTool implements Tool against a web page in a chromedp browser.
type ChromeTool struct {
	cfg     ToolConfig
	browser *scopedBrowser
}

var _ Tool = (*ChromeTool)(nil)

func newChromeTool(cfg ToolConfig, b *scopedBrowser) *ChromeTool {
	return &ChromeTool{cfg: cfg, browser: b}
}

// Name returns the configured tool name.
func (t *ChromeTool) Name() string {
	return t.cfg.Name
}

// Upload navigates to the tool and sets the upload region's file.
func (t *ChromeTool) Upload(ctx context.Context, path string) error {
	sel := fileInputXPath(t.cfg.UploadLabel)
	return t.browser.run(ctx,
		chromedp.Navigate(t.cfg.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.SetUploadFiles(sel, []string{path}, chromedp.BySearch),
	)
}

// Submit opens settings, maxes the slider, enters the width and starts
// the conversion.
func (t *ChromeTool) Submit(ctx context.Context, cfg SubmitConfig) error {
	var actions []chromedp.Action

	if t.cfg.SettingsLabel != "" {
		sel := buttonXPath(t.cfg.SettingsLabel)
		actions = append(actions,
			chromedp.WaitVisible(sel, chromedp.BySearch),
			chromedp.Click(sel, chromedp.BySearch),
		)
	}
	if t.cfg.SliderLabel != "" || t.cfg.UseSlider {
		sel := sliderXPath(t.cfg.SliderLabel)
		actions = append(actions,
			chromedp.WaitVisible(sel, chromedp.BySearch),
			chromedp.Focus(sel, chromedp.BySearch),
			chromedp.KeyEvent(kb.End),
		)
	}
	if t.cfg.WidthLabel != "" && cfg.Width > 0 {
		sel := textFieldXPath(t.cfg.WidthLabel)
		actions = append(actions,
			chromedp.WaitVisible(sel, chromedp.BySearch),
			chromedp.Clear(sel, chromedp.BySearch),
			chromedp.SendKeys(sel, strconv.Itoa(cfg.Width), chromedp.BySearch),
		)
	}
	if t.cfg.SubmitLabel != "" {
		sel := buttonXPath(t.cfg.SubmitLabel)
		actions = append(actions,
			chromedp.WaitVisible(sel, chromedp.BySearch),
			chromedp.Click(sel, chromedp.BySearch),
		)
	}

	if len(actions) == 0 {
		return nil
	}
	return t.browser.run(ctx, actions...)
}

// AwaitDownload waits for the download affordance, clicks it and waits for
// the browser to finish the download. The file is left in the browser's
// download directory; the returned path points there.
func (t *ChromeTool) AwaitDownload(ctx context.Context, _ string) (string, error) {
	sel := buttonXPath(t.cfg.DownloadLabel)
	t.browser.downloads.reset()

	if err := t.browser.run(ctx,
		chromedp.WaitVisible(sel, chromedp.BySearch),
		chromedp.Click(sel, chromedp.BySearch),
	); err != nil {
		return "", err
	}

	guid, err := t.browser.downloads.wait(ctx)
	if err != nil {
		return "", err
	}
	return t.browser.downloadPath(guid), nil
}

// ChromeConverter converts candidates with one browser per candidate.
type ChromeConverter struct {
	browser     BrowserOptions
	vector      ToolConfig
	compress    ToolConfig
	stepTimeout time.Duration
	logger      *log.Logger
}

var _ Converter = (*ChromeConverter)(nil)

// ChromeConverterConfig configures a ChromeConverter.
type ChromeConverterConfig struct {
	Browser  BrowserOptions
	Vector   ToolConfig
	Compress ToolConfig
	// StepTimeout bounds each remote interaction (default DefaultStepTimeout).
	StepTimeout time.Duration
	Logger      *log.Logger
}

// NewChromeConverter validates cfg and returns a converter.
func NewChromeConverter(cfg ChromeConverterConfig) (*ChromeConverter, error) {
	for _, tc := range []ToolConfig{cfg.Vector, cfg.Compress} {
		if tc.Name == "" {
			return nil, errors.New("tool configuration requires a name")
		}
		if tc.URL == "" {
			return nil, fmt.Errorf("tool %q requires a url", tc.Name)
		}
		if tc.DownloadLabel == "" {
			return nil, fmt.Errorf("tool %q requires a download label", tc.Name)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &ChromeConverter{
		browser:     cfg.Browser,
		vector:      cfg.Vector,
		compress:    cfg.Compress,
		stepTimeout: cfg.StepTimeout,
		logger:      logger.Named("convert"),
	}, nil
}

// Convert launches a browser, runs both tools and closes the browser.
func (c *ChromeConverter) Convert(ctx context.Context, cand types.Candidate) (*types.ConversionResult, error) {
	if err := checkArtifactFree(cand.ArtifactPath(ArtifactExt)); err != nil {
		return nil, err
	}
	b, err := launchBrowser(ctx, c.browser, c.logger)
	if err != nil {
		return nil, &SessionError{Tool: "browser", Step: StepLaunch, Err: err}
	}
	defer b.Close()

	c.logger.Info("conversion started", map[string]any{
		"path":         cand.Path,
		"target_width": cand.TargetWidth,
	})

	session := NewSession(
		newChromeTool(c.vector, b),
		newChromeTool(c.compress, b),
		c.stepTimeout,
		c.logger,
	)
	return session.Run(ctx, cand)
}
