package raster

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrTextExtraction is returned when a page's text runs cannot be read.
// It is never fatal to a conversion.
var ErrTextExtraction = errors.New("text extraction failed")

// TextRun is a run of text with its text-space to page-space matrix
// [a b c d e f] in source page coordinates. e and f are the baseline origin.
type TextRun struct {
	Text      string
	Transform [6]float64
}

// X is the run's horizontal origin in source page space.
func (t TextRun) X() float64 { return t.Transform[4] }

// Y is the run's baseline in source page space.
func (t TextRun) Y() float64 { return t.Transform[5] }

// FontSize is the horizontal scale of the text matrix.
func (t TextRun) FontSize() float64 { return math.Abs(t.Transform[0]) }

// TextLayer reads positioned glyphs with ledongthuc/pdf and merges them into
// runs along a baseline.
type TextLayer struct {
	reader *pdf.Reader
	err    error
}

// NewTextLayer parses data for text extraction. A parse failure is kept and
// reported per page rather than failing the whole document.
func NewTextLayer(data []byte) *TextLayer {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &TextLayer{err: err}
	}
	return &TextLayer{reader: reader}
}

// TextRuns returns the runs on the zero-based page index.
func (l *TextLayer) TextRuns(index int) (runs []TextRun, err error) {
	if l == nil || l.reader == nil {
		cause := errors.New("no text reader")
		if l != nil && l.err != nil {
			cause = l.err
		}
		return nil, fmt.Errorf("%w: page %d: %v", ErrTextExtraction, index+1, cause)
	}

	// The reader panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			runs = nil
			err = fmt.Errorf("%w: page %d: %v", ErrTextExtraction, index+1, r)
		}
	}()

	if index < 0 || index >= l.reader.NumPage() {
		return nil, fmt.Errorf("%w: page %d out of range", ErrTextExtraction, index+1)
	}

	page := l.reader.Page(index + 1)
	if page.V.IsNull() {
		return nil, fmt.Errorf("%w: page %d not found", ErrTextExtraction, index+1)
	}

	return groupRuns(page.Content().Text), nil
}

const (
	baselineTolerance = 0.5  // points
	wordGapRatio      = 0.2  // of font size; wider gaps get a space
	runBreakRatio     = 1.5  // of font size; wider gaps start a new run
	overlapRatio      = -0.5 // of font size; glyphs further back start a new run
)

// groupRuns merges glyphs that share a font, size and baseline and follow
// each other closely.
func groupRuns(glyphs []pdf.Text) []TextRun {
	var runs []TextRun
	var cur strings.Builder
	var start pdf.Text
	var end float64
	open := false

	flush := func() {
		if open && cur.Len() > 0 {
			runs = append(runs, TextRun{
				Text:      cur.String(),
				Transform: [6]float64{start.FontSize, 0, 0, start.FontSize, start.X, start.Y},
			})
		}
		cur.Reset()
		open = false
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}

		if open {
			gap := g.X - end
			size := math.Max(start.FontSize, 1)
			sameLine := math.Abs(g.Y-start.Y) <= baselineTolerance &&
				g.Font == start.Font && g.FontSize == start.FontSize

			if sameLine && gap >= overlapRatio*size && gap <= runBreakRatio*size {
				if gap > wordGapRatio*size && !strings.HasSuffix(cur.String(), " ") && g.S != " " {
					cur.WriteByte(' ')
				}
				cur.WriteString(g.S)
				end = g.X + g.W
				continue
			}
			flush()
		}

		start = g
		end = g.X + g.W
		cur.WriteString(g.S)
		open = true
	}
	flush()

	return runs
}
