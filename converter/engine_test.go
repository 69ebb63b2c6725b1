package converter_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfdark/converter"
	"pdfdark/converter/assemble"
	"pdfdark/converter/pdfconf"
	"pdfdark/converter/progress"
	"pdfdark/converter/raster"
)

type harness struct {
	doc     *fakeDocument
	writer  *recordingWriter
	sink    *snapshotRecorder
	tracker *progress.Tracker
	engine  *converter.Engine
}

func newHarness(t *testing.T, pages ...fakePage) *harness {
	t.Helper()

	h := &harness{
		doc:    &fakeDocument{pages: pages},
		writer: newRecordingWriter(),
		sink:   &snapshotRecorder{},
	}
	h.tracker = progress.NewTracker("test-conversion", h.sink, nil)
	h.engine = converter.NewEngine(&fakeRenderer{doc: h.doc}, nil, quietLogger(t))
	h.engine.SetWriterFactoryForTest(func() assemble.Writer { return h.writer })
	return h
}

func TestEngine_PreservesPageCountOrderAndAspect(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		textPage(612, 792),
		fakePage{size: raster.PageSize{Width: 842, Height: 595}, img: photoImage(84, 60)},
		textPage(300, 500),
	)

	out, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	assert.Equal(t, []int{0, 1, 2}, h.doc.rendered)
	assert.True(t, h.doc.closed)
	for _, scale := range h.doc.scales {
		assert.InDelta(t, 2.5, scale, 1e-9)
	}

	dims, err := api.PageDims(bytes.NewReader(out), pdfconf.Relaxed())
	require.NoError(t, err)
	require.Len(t, dims, len(h.doc.pages))

	for i, page := range h.doc.pages {
		assert.InDelta(t, page.size.Width*0.75, dims[i].Width, 0.01, pageLabel(i+1))
		assert.InDelta(t, page.size.Height*0.75, dims[i].Height, 0.01, pageLabel(i+1))
		assert.InDelta(t, page.size.Width/page.size.Height, dims[i].Width/dims[i].Height, 1e-3, pageLabel(i+1))
	}

	assert.Equal(t, raster.FormatPNG, h.writer.pages[0].format)
	assert.Equal(t, raster.FormatJPEG, h.writer.pages[1].format)
	assert.Equal(t, raster.FormatPNG, h.writer.pages[2].format)
	assert.Equal(t, progress.StatusCompleted, h.tracker.Snapshot().Status)
}

func TestEngine_FinalizesWithoutObjectStreams(t *testing.T) {
	t.Parallel()

	h := newHarness(t, textPage(612, 792, run("Hello", 72, 700, 12)))

	out, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.NotContains(t, string(out), "/ObjStm")
}

func TestEngine_ProgressSnapshots(t *testing.T) {
	t.Parallel()

	pages := make([]fakePage, 7)
	for i := range pages {
		pages[i] = textPage(200, 300)
	}
	h := newHarness(t, pages...)

	_, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
	require.NoError(t, err)

	var perPage []progress.Snapshot
	for _, s := range h.sink.snaps {
		if s.Status == progress.StatusProcessing && s.CurrentPage > 0 {
			perPage = append(perPage, s)
		}
	}
	require.Len(t, perPage, len(pages))

	prev := 0
	for i, s := range perPage {
		assert.Equal(t, i+1, s.CurrentPage)
		assert.Equal(t, len(pages), s.TotalPages)
		assert.GreaterOrEqual(t, s.Percentage, prev)
		if i < len(perPage)-1 {
			assert.Less(t, s.Percentage, 100)
		}
		prev = s.Percentage
	}
	assert.Equal(t, 100, perPage[len(perPage)-1].Percentage)

	first := h.sink.snaps[0]
	assert.Equal(t, progress.StatusProcessing, first.Status)
	assert.Equal(t, 0, first.CurrentPage)

	last := h.sink.snaps[len(h.sink.snaps)-1]
	assert.Equal(t, progress.StatusCompleted, last.Status)
	assert.Equal(t, "test-conversion", last.ConversionID)
}

func TestEngine_InvisibleTextLayer(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		textPage(612, 792,
			run("Hello world", 72, 700, 12),
			run("   ", 72, 680, 12),
			run("tiny", 100, 100, 0.5),
		),
	)

	_, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
	require.NoError(t, err)

	require.Len(t, h.writer.texts, 2)

	hello := h.writer.texts[0]
	assert.Equal(t, "Hello world", hello.text)
	assert.InDelta(t, 54, hello.x, 1e-9)
	assert.InDelta(t, 594-700*0.75, hello.y, 1e-9)
	assert.InDelta(t, 9, hello.size, 1e-9)
	assert.Zero(t, hello.opacity)

	tiny := h.writer.texts[1]
	assert.InDelta(t, 1, tiny.size, 1e-9)
}

func TestEngine_RecoverableTextFailures(t *testing.T) {
	t.Parallel()

	t.Run("Extraction failure degrades the page to image only", func(t *testing.T) {
		t.Parallel()

		broken := textPage(612, 792, run("lost", 10, 10, 12))
		broken.textErr = raster.ErrTextExtraction
		h := newHarness(t,
			textPage(612, 792, run("first", 10, 10, 12)),
			broken,
			textPage(612, 792, run("third", 10, 10, 12)),
		)

		out, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
		require.NoError(t, err)
		require.NotEmpty(t, out)

		require.Len(t, h.writer.texts, 2)
		assert.Equal(t, 1, h.writer.texts[0].page)
		assert.Equal(t, 3, h.writer.texts[1].page)
		assert.Len(t, h.writer.pages, 3)
	})

	t.Run("Glyph failure skips only that glyph", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, textPage(612, 792, run("bad", 10, 10, 12), run("good", 10, 30, 12)))
		h.writer.failText = "bad"

		_, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
		require.NoError(t, err)

		require.Len(t, h.writer.texts, 1)
		assert.Equal(t, "good", h.writer.texts[0].text)
	})
}

func TestEngine_FatalFailures(t *testing.T) {
	t.Parallel()

	t.Run("Render failure stops the conversion", func(t *testing.T) {
		t.Parallel()

		broken := textPage(612, 792)
		broken.renderErr = errors.New("canvas unavailable")
		h := newHarness(t, textPage(612, 792), broken, textPage(612, 792))

		out, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, converter.ErrRender)

		var convErr *converter.ConversionError
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, 2, convErr.Page)

		assert.Equal(t, []int{0, 1}, h.doc.rendered)
		snap := h.tracker.Snapshot()
		assert.Equal(t, progress.StatusError, snap.Status)
		assert.Contains(t, snap.Error, "canvas unavailable")
	})

	t.Run("Missing drawing surface is a render failure", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, fakePage{size: raster.PageSize{Width: 100, Height: 100}})

		_, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
		assert.ErrorIs(t, err, converter.ErrRender)
	})

	t.Run("Open failure is a render failure", func(t *testing.T) {
		t.Parallel()

		tracker := progress.NewTracker("open", nil, nil)
		engine := converter.NewEngine(&fakeRenderer{openErr: errors.New("corrupt xref")}, nil, quietLogger(t))

		_, err := engine.Convert(context.Background(), []byte("%PDF-1.7"), tracker)
		assert.ErrorIs(t, err, converter.ErrRender)
		assert.Equal(t, progress.StatusError, tracker.Snapshot().Status)
	})

	t.Run("Empty document is a render failure", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)

		_, err := h.engine.Convert(context.Background(), []byte("%PDF-1.7"), h.tracker)
		assert.ErrorIs(t, err, converter.ErrRender)
	})
}

func TestEngine_CancellationAbortsBetweenPages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, textPage(200, 300), textPage(200, 300), textPage(200, 300))
	h.tracker = progress.NewTracker("cancel", progress.SinkFunc(func(s progress.Snapshot) {
		if s.CurrentPage == 1 {
			cancel()
		}
	}), nil)

	out, err := h.engine.Convert(ctx, []byte("%PDF-1.7"), h.tracker)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, converter.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []int{0}, h.doc.rendered)
	assert.Equal(t, progress.StatusAborted, h.tracker.Snapshot().Status)
}

func TestEngine_PacingHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := converter.FixedPacer{Delay: time.Hour}.Pace(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, converter.FixedPacer{}.Pace(context.Background()))
	assert.NoError(t, converter.NoPacer{}.Pace(context.Background()))
}

func TestEngine_DefaultScale(t *testing.T) {
	t.Parallel()

	engine := converter.NewEngine(&fakeRenderer{}, nil, nil)
	assert.InDelta(t, raster.RenderScale, engine.ScaleForTest(), 1e-9)
	assert.True(t, strings.HasPrefix(converter.UserMessage, "Failed to convert PDF"))
}
