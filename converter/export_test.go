package converter

import "pdfdark/converter/assemble"

// Exported test-only accessors for unexported fields.
// This file is compiled only during tests and does not affect the public API.

// SetWriterFactoryForTest lets tests observe or fail document writes.
func (e *Engine) SetWriterFactoryForTest(newWriter func() assemble.Writer) {
	e.newWriter = newWriter
}

// ScaleForTest returns the render scale the engine passes to the renderer.
func (e *Engine) ScaleForTest() float64 { return e.scale }
