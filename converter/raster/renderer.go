package raster

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// RenderScale is the magnification used when rasterizing pages. It only
// affects raster fidelity, never the output page size.
const RenderScale = 2.5

// pointsPerInch converts a render scale into a DPI for tools that want one.
const pointsPerInch = 72.0

// PageSize is a page's size in points at scale 1.0. OriginX and OriginY are
// the lower-left corner of the media box in user space.
type PageSize struct {
	Width   float64
	Height  float64
	OriginX float64
	OriginY float64
}

// Renderer opens a source document for rasterization and text extraction.
type Renderer interface {
	Open(data []byte) (Document, error)
}

// Document is an opened source document. Page indices are zero-based.
type Document interface {
	PageCount() int
	PageSize(index int) (PageSize, error)
	RenderPage(index int, scale float64) (image.Image, error)
	TextRuns(index int) ([]TextRun, error)
	Close() error
}

// PopplerRenderer rasterizes pages with poppler-utils. It tries pdftoppm
// first and falls back to pdftocairo.
type PopplerRenderer struct{}

// NewPopplerRenderer creates a new PopplerRenderer
func NewPopplerRenderer() *PopplerRenderer {
	return &PopplerRenderer{}
}

// Open spools data to a temp file for the poppler tools and reads page
// geometry with pdfcpu.
func (r *PopplerRenderer) Open(data []byte) (Document, error) {
	tool, err := findPopplerTool()
	if err != nil {
		return nil, err
	}

	pages, err := ReadPageGeometry(data)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "pdfdark-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	pdfPath := filepath.Join(tempDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to spool input: %w", err)
	}

	return &popplerDocument{
		tool:    tool,
		tempDir: tempDir,
		pdfPath: pdfPath,
		pages:   pages,
		text:    NewTextLayer(data),
	}, nil
}

func findPopplerTool() (string, error) {
	for _, tool := range []string{"pdftoppm", "pdftocairo"} {
		if _, err := exec.LookPath(tool); err == nil {
			return tool, nil
		}
	}
	return "", errors.New("no PDF renderer available. Please install poppler-utils:\n  macOS: brew install poppler\n  Ubuntu: sudo apt install poppler-utils")
}

type popplerDocument struct {
	tool    string
	tempDir string
	pdfPath string
	pages   []PageSize
	text    *TextLayer
}

func (d *popplerDocument) PageCount() int {
	return len(d.pages)
}

func (d *popplerDocument) PageSize(index int) (PageSize, error) {
	if index < 0 || index >= len(d.pages) {
		return PageSize{}, fmt.Errorf("page %d out of range", index+1)
	}
	return d.pages[index], nil
}

// RenderPage renders a single page to page.png in the temp directory and
// loads it back.
func (d *popplerDocument) RenderPage(index int, scale float64) (image.Image, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range", index+1)
	}

	pageNum := strconv.Itoa(index + 1)
	outputPrefix := filepath.Join(d.tempDir, "page")

	cmd := exec.Command(d.tool,
		"-png",
		"-r", strconv.FormatFloat(scale*pointsPerInch, 'f', -1, 64),
		"-f", pageNum,
		"-l", pageNum,
		"-singlefile",
		d.pdfPath,
		outputPrefix,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w\nOutput: %s", d.tool, err, string(output))
	}

	path := outputPrefix + ".png"
	defer os.Remove(path)
	return loadPNG(path)
}

func (d *popplerDocument) TextRuns(index int) ([]TextRun, error) {
	return d.text.TextRuns(index)
}

func (d *popplerDocument) Close() error {
	return os.RemoveAll(d.tempDir)
}

// loadPNG loads a PNG image from a file
func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return png.Decode(f)
}
