package converter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdfdark/converter/progress"
	"pdfdark/converter/raster"
)

// MediaTypePDF is the only accepted input media type.
const MediaTypePDF = "application/pdf"

// UserMessage is what a user sees when a conversion fails.
const UserMessage = "Failed to convert PDF. Please try again."

var (
	// ErrInvalidInput is returned before any processing for missing or non-PDF input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRender is returned when a page cannot be rasterized.
	ErrRender = errors.New("render failed")
	// ErrEncode is returned when a page image or the output cannot be encoded.
	ErrEncode = errors.New("encode failed")
	// ErrAborted is returned when the conversion is cancelled between pages.
	ErrAborted = errors.New("conversion aborted")
)

// ConversionError carries the page a fatal failure happened on.
type ConversionError struct {
	Page int
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Renderer names accepted by NewRenderer.
const (
	RendererFitz    = "fitz"
	RendererPoppler = "poppler"
)

// Options holds the configuration for PDF conversion
type Options struct {
	InputFile    string
	OutputFile   string
	Renderer     string        // "fitz" or "poppler"
	Pacing       time.Duration // delay between pages, 0 disables
	ConversionID string        // generated when empty
	Sink         progress.Sink
	Logger       *logrus.Entry
	Now          func() time.Time
}

// Result is a finished conversion.
type Result struct {
	ConversionID string
	PDF          []byte
	Progress     progress.Snapshot
}

// NewRenderer returns the renderer registered under name.
func NewRenderer(name string) (raster.Renderer, error) {
	switch name {
	case RendererFitz, "":
		return raster.NewFitzRenderer(), nil
	case RendererPoppler:
		return raster.NewPopplerRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown renderer: %s (must be '%s' or '%s')", name, RendererFitz, RendererPoppler)
	}
}

// DetectMediaType sniffs the media type of data.
func DetectMediaType(data []byte) string {
	mediaType := http.DetectContentType(data)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.TrimSpace(mediaType)
}

// OutputName returns the download name for a converted file: <stem>_dark.pdf.
func OutputName(inputPath string) string {
	dir, base := filepath.Split(inputPath)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return dir + base + "_dark.pdf"
}

// ConvertBytes converts an in-memory PDF. Input that is empty or not
// declared as application/pdf is rejected before the conversion starts.
func ConvertBytes(ctx context.Context, data []byte, mediaType string, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no file supplied", ErrInvalidInput)
	}
	if mediaType != MediaTypePDF {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrInvalidInput, MediaTypePDF, mediaType)
	}

	renderer, err := NewRenderer(opts.Renderer)
	if err != nil {
		return nil, err
	}

	id := opts.ConversionID
	if id == "" {
		id = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("conversion_id", id)

	var pacer Pacer = NoPacer{}
	if opts.Pacing > 0 {
		pacer = FixedPacer{Delay: opts.Pacing}
	}

	tracker := progress.NewTracker(id, opts.Sink, opts.Now)
	engine := NewEngine(renderer, pacer, log)

	pdf, err := engine.Convert(ctx, data, tracker)
	if err != nil {
		return nil, err
	}

	return &Result{ConversionID: id, PDF: pdf, Progress: tracker.Snapshot()}, nil
}

// Convert reads opts.InputFile, converts it and writes opts.OutputFile.
// The output file is only created once the conversion has succeeded.
func Convert(ctx context.Context, opts Options) (*Result, error) {
	data, err := os.ReadFile(opts.InputFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	result, err := ConvertBytes(ctx, data, DetectMediaType(data), opts)
	if err != nil {
		return nil, err
	}

	outputFile := opts.OutputFile
	if outputFile == "" {
		outputFile = OutputName(opts.InputFile)
	}
	if err := os.WriteFile(outputFile, result.PDF, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}

	return result, nil
}
