// Package assemble builds the output document: one raster-backed page per
// source page with an invisible text layer on top.
package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"codeberg.org/go-pdf/fpdf"

	"pdfdark/converter/colors"
	"pdfdark/converter/raster"
)

// Writer is the document-building capability the assembler draws through.
// Coordinates are PDF user space: points, origin at the bottom-left corner
// of the current page. Text y is the baseline.
type Writer interface {
	AddPage(width, height float64) error
	DrawImage(img raster.EncodedImage, x, y, width, height float64) error
	DrawText(text string, x, y, size float64, c colors.Color, opacity float64) error
	Output(w io.Writer) error
}

// FPDFWriter implements Writer on top of fpdf.
type FPDFWriter struct {
	pdf        *fpdf.Fpdf
	translate  func(string) string
	pageHeight float64
	images     int
}

const textFont = "Helvetica"

// ErrGlyph is returned for text the text font cannot encode.
var ErrGlyph = errors.New("glyph not representable")

// NewFPDFWriter creates an empty document measured in points.
func NewFPDFWriter() *FPDFWriter {
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetFont(textFont, "", 12)

	return &FPDFWriter{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (w *FPDFWriter) AddPage(width, height float64) error {
	w.pdf.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})
	w.pageHeight = height
	return w.pdf.Error()
}

func (w *FPDFWriter) DrawImage(img raster.EncodedImage, x, y, width, height float64) error {
	opts := fpdf.ImageOptions{ImageType: imageType(img.Format)}
	name := fmt.Sprintf("page-image-%d", w.images)
	w.images++

	w.pdf.SetAlpha(1, "Normal")
	w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Bytes))
	w.pdf.ImageOptions(name, x, w.pageHeight-y-height, width, height, false, opts, 0, "")

	return w.pdf.Error()
}

// DrawText places one run. A failure here is cleared so the document stays
// usable for the following runs.
func (w *FPDFWriter) DrawText(text string, x, y, size float64, c colors.Color, opacity float64) error {
	if err := w.encodable(text); err != nil {
		return err
	}

	w.pdf.SetAlpha(opacity, "Normal")
	w.pdf.SetTextColor(int(c.R8), int(c.G8), int(c.B8))
	w.pdf.SetFontSize(size)
	w.pdf.Text(x, w.pageHeight-y, w.translate(text))

	if err := w.pdf.Error(); err != nil {
		w.pdf.ClearError()
		return err
	}
	return nil
}

// encodable rejects text the core font code page cannot hold. The
// translator would otherwise write such runes as '.'.
func (w *FPDFWriter) encodable(text string) error {
	for _, r := range text {
		if r < utf8.RuneSelf {
			continue
		}
		if w.translate(string(r)) == "." {
			return fmt.Errorf("%w: %q", ErrGlyph, r)
		}
	}
	return nil
}

func (w *FPDFWriter) Output(out io.Writer) error {
	return w.pdf.Output(out)
}

func imageType(f raster.Format) string {
	if f == raster.FormatJPEG {
		return "JPG"
	}
	return "PNG"
}
