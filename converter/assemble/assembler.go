package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"

	"pdfdark/converter/colors"
	"pdfdark/converter/pdfconf"
	"pdfdark/converter/raster"
)

// OutputScale maps source page size to output page size.
const OutputScale = 0.75

const minFontSize = 1.0

// Invisible runs are drawn black at zero opacity.
var glyphColor = colors.NewColorFromRGB8(0, 0, 0)

var (
	// ErrFinalized is returned when pages are added after Finalize.
	ErrFinalized = errors.New("document already finalized")
	// ErrPage is returned when a page or its background cannot be written.
	ErrPage = errors.New("failed to assemble page")
)

// Glyph is an invisible text run in output page coordinates.
type Glyph struct {
	Text string
	X    float64
	Y    float64
	Size float64
}

// PageStats reports what was drawn on an assembled page.
type PageStats struct {
	Width   float64
	Height  float64
	Glyphs  int
	Skipped int
}

// Assembler accumulates output pages in order and finalizes them once.
type Assembler struct {
	writer    Writer
	log       *logrus.Entry
	sizes     []raster.PageSize
	finalized bool
}

// NewAssembler creates an Assembler drawing through w.
func NewAssembler(w Writer, log *logrus.Entry) *Assembler {
	return &Assembler{writer: w, log: log}
}

// OutputSize returns the output page size for a source page.
func OutputSize(src raster.PageSize) (float64, float64) {
	return src.Width * OutputScale, src.Height * OutputScale
}

// Glyphs maps text runs from source page space into an output page of
// outW x outH, relative to the source media box origin. Whitespace-only
// runs are dropped.
func Glyphs(runs []raster.TextRun, src raster.PageSize, outW, outH float64) []Glyph {
	if src.Width <= 0 || src.Height <= 0 {
		return nil
	}

	sx := outW / src.Width
	sy := outH / src.Height

	glyphs := make([]Glyph, 0, len(runs))
	for _, run := range runs {
		if strings.TrimSpace(run.Text) == "" {
			continue
		}
		glyphs = append(glyphs, Glyph{
			Text: run.Text,
			X:    (run.X() - src.OriginX) * sx,
			Y:    outH - (run.Y()-src.OriginY)*sy,
			Size: math.Max(minFontSize, run.FontSize()*sx),
		})
	}
	return glyphs
}

// AddPage appends one output page for a source page of size src, with img
// as a full-bleed background and runs as an invisible text layer.
func (a *Assembler) AddPage(src raster.PageSize, img raster.EncodedImage, runs []raster.TextRun) (PageStats, error) {
	if a.finalized {
		return PageStats{}, ErrFinalized
	}

	w, h := OutputSize(src)
	if err := a.writer.AddPage(w, h); err != nil {
		return PageStats{}, fmt.Errorf("%w %d: %w", ErrPage, len(a.sizes)+1, err)
	}
	if err := a.writer.DrawImage(img, 0, 0, w, h); err != nil {
		return PageStats{}, fmt.Errorf("%w %d: embedding %s image: %w", ErrPage, len(a.sizes)+1, img.Format, err)
	}
	a.sizes = append(a.sizes, raster.PageSize{Width: w, Height: h})

	stats := PageStats{Width: w, Height: h}
	for _, g := range Glyphs(runs, src, w, h) {
		if err := a.writer.DrawText(g.Text, g.X, g.Y, g.Size, glyphColor, 0); err != nil {
			stats.Skipped++
			a.log.WithError(err).WithField("page", len(a.sizes)).Warn("Skipping text run")
			continue
		}
		stats.Glyphs++
	}

	return stats, nil
}

// Pages returns the number of pages assembled so far.
func (a *Assembler) Pages() int {
	return len(a.sizes)
}

// Finalize serializes the document to out. It may be called once.
func (a *Assembler) Finalize(out io.Writer) error {
	if a.finalized {
		return ErrFinalized
	}
	a.finalized = true

	var raw bytes.Buffer
	if err := a.writer.Output(&raw); err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}

	return Finalize(raw.Bytes(), a.sizes, out)
}

// Finalize rewrites raw with pdfcpu, without object or xref streams. The
// writer rounds page boxes to two decimals, so each page's media box is
// reset to its exact entry in sizes.
func Finalize(raw []byte, sizes []raster.PageSize, out io.Writer) error {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(raw), pdfconf.Output())
	if err != nil {
		return fmt.Errorf("failed to read assembled PDF: %w", err)
	}
	if len(sizes) != ctx.PageCount {
		return fmt.Errorf("assembled %d pages, document has %d", len(sizes), ctx.PageCount)
	}

	for i, size := range sizes {
		page, _, _, err := ctx.PageDict(i+1, false)
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", i+1, err)
		}
		page.Update("MediaBox", types.NewNumberArray(0, 0, size.Width, size.Height))
	}

	if err := api.WriteContext(ctx, out); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
