package converter_test

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"pdfdark/converter/assemble"
	"pdfdark/converter/colors"
	"pdfdark/converter/progress"
	"pdfdark/converter/raster"
)

type fakePage struct {
	size      raster.PageSize
	img       image.Image
	runs      []raster.TextRun
	renderErr error
	textErr   error
}

type fakeDocument struct {
	pages    []fakePage
	rendered []int
	scales   []float64
	closed   bool
}

func (d *fakeDocument) PageCount() int { return len(d.pages) }

func (d *fakeDocument) PageSize(index int) (raster.PageSize, error) {
	return d.pages[index].size, nil
}

func (d *fakeDocument) RenderPage(index int, scale float64) (image.Image, error) {
	d.rendered = append(d.rendered, index)
	d.scales = append(d.scales, scale)
	if err := d.pages[index].renderErr; err != nil {
		return nil, err
	}
	return d.pages[index].img, nil
}

func (d *fakeDocument) TextRuns(index int) ([]raster.TextRun, error) {
	return d.pages[index].runs, d.pages[index].textErr
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeRenderer struct {
	doc     *fakeDocument
	openErr error
}

func (r *fakeRenderer) Open([]byte) (raster.Document, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.doc, nil
}

type drawnText struct {
	page    int
	text    string
	x, y    float64
	size    float64
	opacity float64
}

type drawnPage struct {
	width, height float64
	format        raster.Format
}

// recordingWriter records every call and delegates to a real fpdf writer so
// the finalized output can be inspected with pdfcpu.
type recordingWriter struct {
	inner    *assemble.FPDFWriter
	pages    []drawnPage
	texts    []drawnText
	failText string
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{inner: assemble.NewFPDFWriter()}
}

func (w *recordingWriter) AddPage(width, height float64) error {
	w.pages = append(w.pages, drawnPage{width: width, height: height})
	return w.inner.AddPage(width, height)
}

func (w *recordingWriter) DrawImage(img raster.EncodedImage, x, y, width, height float64) error {
	w.pages[len(w.pages)-1].format = img.Format
	return w.inner.DrawImage(img, x, y, width, height)
}

func (w *recordingWriter) DrawText(text string, x, y, size float64, c colors.Color, opacity float64) error {
	if text == w.failText {
		return errors.New("glyph not representable")
	}
	w.texts = append(w.texts, drawnText{page: len(w.pages), text: text, x: x, y: y, size: size, opacity: opacity})
	return w.inner.DrawText(text, x, y, size, c, opacity)
}

func (w *recordingWriter) Output(out io.Writer) error {
	return w.inner.Output(out)
}

type snapshotRecorder struct {
	snaps []progress.Snapshot
}

func (r *snapshotRecorder) Publish(s progress.Snapshot) {
	r.snaps = append(r.snaps, s)
}

// pageImage draws a white page with a black bar, like a line of text.
func pageImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if y > h/3 && y < h/3+3 && x > 4 && x < w-4 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// photoImage alternates saturated colors so every sampler sees variance.
func photoImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	palette := []color.RGBA{{200, 30, 30, 255}, {30, 160, 40, 255}, {40, 60, 200, 255}}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, palette[(x+y)%len(palette)])
		}
	}
	return img
}

func textPage(w, h float64, runs ...raster.TextRun) fakePage {
	return fakePage{
		size: raster.PageSize{Width: w, Height: h},
		img:  pageImage(int(w/10), int(h/10)),
		runs: runs,
	}
}

func run(text string, x, y, size float64) raster.TextRun {
	return raster.TextRun{Text: text, Transform: [6]float64{size, 0, 0, size, x, y}}
}

func quietLogger(t *testing.T) *logrus.Entry {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func pageLabel(i int) string {
	return fmt.Sprintf("page %d", i)
}
