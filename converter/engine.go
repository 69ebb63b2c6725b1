package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"pdfdark/converter/assemble"
	"pdfdark/converter/colors"
	"pdfdark/converter/progress"
	"pdfdark/converter/raster"
)

// Engine implements the raster-based PDF dark mode conversion
type Engine struct {
	renderer  raster.Renderer
	inverter  *raster.Inverter
	encoder   *raster.Encoder
	pacer     Pacer
	scale     float64
	newWriter func() assemble.Writer
	log       *logrus.Entry
}

// NewEngine creates a new raster conversion engine. A nil pacer disables
// pacing and a nil logger logs to the standard logrus logger.
func NewEngine(renderer raster.Renderer, pacer Pacer, log *logrus.Entry) *Engine {
	if pacer == nil {
		pacer = NoPacer{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Engine{
		renderer:  renderer,
		inverter:  raster.NewInverter(colors.Dark),
		encoder:   raster.NewEncoder(),
		pacer:     pacer,
		scale:     raster.RenderScale,
		newWriter: func() assemble.Writer { return assemble.NewFPDFWriter() },
		log:       log,
	}
}

// Convert runs the whole conversion of data and returns the finished PDF.
// tracker must be idle; it ends completed, error or aborted.
func (e *Engine) Convert(ctx context.Context, data []byte, tracker *progress.Tracker) ([]byte, error) {
	if err := tracker.Start(0); err != nil {
		return nil, err
	}

	out, err := e.convert(ctx, data, tracker)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			e.log.WithField("pages_done", tracker.Snapshot().CurrentPage).Warn("Conversion aborted")
			_ = tracker.Abort()
		} else {
			e.log.WithError(err).Error("Conversion failed")
			_ = tracker.Fail(err)
		}
		return nil, err
	}

	if err := tracker.Complete(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) convert(ctx context.Context, data []byte, tracker *progress.Tracker) ([]byte, error) {
	doc, err := e.renderer.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil {
			e.log.WithError(closeErr).Warn("Failed to close source document")
		}
	}()

	total := doc.PageCount()
	if total <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRender)
	}
	if err := tracker.SetTotal(total); err != nil {
		return nil, err
	}
	e.log.WithField("pages", total).Info("Converting document")

	asm, err := e.foldPages(ctx, doc, tracker, assemble.NewAssembler(e.newWriter(), e.log))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := asm.Finalize(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return out.Bytes(), nil
}

// foldPages threads the assembler through the pages in order, one page at a
// time. On any error the partial document is dropped with it.
func (e *Engine) foldPages(
	ctx context.Context,
	doc raster.Document,
	tracker *progress.Tracker,
	asm *assemble.Assembler,
) (*assemble.Assembler, error) {
	total := doc.PageCount()

	for index := 0; index < total; index++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w before page %d: %w", ErrAborted, index+1, ctx.Err())
		}

		if err := e.processPage(doc, asm, index); err != nil {
			return nil, &ConversionError{Page: index + 1, Err: err}
		}

		if _, err := tracker.PageDone(index + 1); err != nil {
			return nil, err
		}

		// A cancelled pace is picked up at the top of the next iteration.
		_ = e.pacer.Pace(ctx)
	}

	return asm, nil
}

// processPage renders, remaps, encodes and assembles one page.
func (e *Engine) processPage(doc raster.Document, asm *assemble.Assembler, index int) error {
	log := e.log.WithField("page", index+1)

	size, err := doc.PageSize(index)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("%w: empty page box %.2fx%.2f", ErrRender, size.Width, size.Height)
	}

	rendered, err := doc.RenderPage(index, e.scale)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}
	if rendered == nil || rendered.Bounds().Empty() {
		return fmt.Errorf("%w: renderer returned no drawing surface", ErrRender)
	}

	bitmap := raster.ToNRGBA(rendered)
	content := raster.PageClassifier.Classify(bitmap)
	e.inverter.InvertImage(bitmap, content.IsPhotographic)

	heaviness := raster.HeavinessClassifier.Classify(bitmap)
	encoded, err := e.encoder.Encode(bitmap, heaviness.IsPhotographic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	runs, err := doc.TextRuns(index)
	if err != nil {
		log.WithError(err).Warn("Could not extract text for searchability")
		runs = nil
	}

	stats, err := asm.AddPage(size, encoded, runs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	log.WithFields(logrus.Fields{
		"photo":    content.IsPhotographic,
		"variance": content.VarianceScore,
		"format":   encoded.Format,
		"bytes":    len(encoded.Bytes),
		"runs":     stats.Glyphs,
		"skipped":  stats.Skipped,
	}).Debug("Page assembled")

	return nil
}
