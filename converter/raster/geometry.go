package raster

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdfdark/converter/pdfconf"
)

// ReadPageGeometry returns the exact media box of every page, in page order.
// Sizes are swapped for pages rotated by a quarter turn.
func ReadPageGeometry(data []byte) ([]PageSize, error) {
	ctx, err := api.ReadAndValidate(bytes.NewReader(data), pdfconf.Relaxed())
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	boundaries, err := ctx.PageBoundaries(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read page boundaries: %w", err)
	}
	if len(boundaries) != ctx.PageCount {
		return nil, errors.New("corrupt page dimensions")
	}

	pages := make([]PageSize, len(boundaries))
	for i, pb := range boundaries {
		box := pb.MediaBox()
		if box == nil {
			return nil, fmt.Errorf("page %d has no media box", i+1)
		}

		size := PageSize{
			Width:   box.Width(),
			Height:  box.Height(),
			OriginX: box.LL.X,
			OriginY: box.LL.Y,
		}
		if pb.Rot%180 != 0 {
			size.Width, size.Height = size.Height, size.Width
		}
		pages[i] = size
	}

	return pages, nil
}
