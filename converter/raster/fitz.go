package raster

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes pages in-process with MuPDF (requires cgo).
type FitzRenderer struct{}

// NewFitzRenderer creates a new Fitz-based renderer
func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

// Open parses data with MuPDF. Text runs come from a separate reader so a
// document MuPDF can draw but the text reader cannot parse still renders.
// Page sizes come from pdfcpu, since MuPDF only reports whole points; a
// document only MuPDF can repair falls back to its bounds.
func (r *FitzRenderer) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pages, err := ReadPageGeometry(data)
	if err != nil || len(pages) != doc.NumPage() {
		pages = nil
	}

	return &fitzDocument{doc: doc, pages: pages, text: NewTextLayer(data)}, nil
}

type fitzDocument struct {
	doc   *fitz.Document
	pages []PageSize
	text  *TextLayer
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) PageSize(index int) (PageSize, error) {
	if d.pages != nil {
		if index < 0 || index >= len(d.pages) {
			return PageSize{}, fmt.Errorf("page %d out of range", index+1)
		}
		return d.pages[index], nil
	}

	// MuPDF bounds are whole points at 72 DPI.
	bound, err := d.doc.Bound(index)
	if err != nil {
		return PageSize{}, fmt.Errorf("unable to read bounds of page %d: %w", index+1, err)
	}
	return PageSize{Width: float64(bound.Dx()), Height: float64(bound.Dy())}, nil
}

func (d *fitzDocument) RenderPage(index int, scale float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(index, scale*pointsPerInch)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index+1, err)
	}
	return img, nil
}

func (d *fitzDocument) TextRuns(index int) ([]TextRun, error) {
	return d.text.TextRuns(index)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
