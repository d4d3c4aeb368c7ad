package pipeline

import (
	"fmt"
	"math"

	"github.com/maauso/vidtransform/internal/engine"
	"github.com/maauso/vidtransform/internal/transform"
)

const bytesPerPixel = 4 // RGBA

// Blitter applies one job's crop and rotation to raw RGBA frames. The crop
// offsets and rotation are computed once from the plan and reused for every
// frame; Draw reuses a single output buffer.
type Blitter struct {
	srcWidth  int
	srcHeight int

	cropX, cropY          int
	cropWidth, cropHeight int

	// rotation is the total rotation in degrees (0, 90, 180 or 270) applied
	// after the crop: the source's embedded orientation plus the requested
	// angle for crop operations, or just the requested angle for
	// rotate-only.
	rotation int

	outWidth  int
	outHeight int
	out       []byte
}

// NewBlitter derives the per-frame draw parameters from a plan.
func NewBlitter(plan engine.Plan) (*Blitter, error) {
	srcW, srcH := plan.Geometry.NaturalWidth, plan.Geometry.NaturalHeight
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", transform.ErrInvalidDimensions, srcW, srcH)
	}

	b := &Blitter{srcWidth: srcW, srcHeight: srcH}

	if plan.Output.Crop != nil {
		rect := *plan.Output.Crop
		b.cropWidth = evenDimension(int(math.Round(rect.Width)))
		b.cropHeight = evenDimension(int(math.Round(rect.Height)))
		b.cropX = clamp(int(math.Round(rect.X)), 0, srcW-b.cropWidth)
		b.cropY = clamp(int(math.Round(rect.Y)), 0, srcH-b.cropHeight)
		// Crop operations render display-oriented output, so the embedded
		// orientation is part of the draw. SourceRotation is counter-clockwise
		// (the probe convention); the draw cases are clockwise.
		b.rotation = (int(plan.Output.Angle) - plan.SourceRotation + 360) % 360
	} else {
		b.cropWidth = evenDimension(srcW)
		b.cropHeight = evenDimension(srcH)
		b.rotation = int(plan.Output.Angle)
	}

	if b.cropWidth < 2 || b.cropHeight < 2 {
		return nil, fmt.Errorf("crop rectangle %dx%d is too small to encode", b.cropWidth, b.cropHeight)
	}

	if b.rotation == 90 || b.rotation == 270 {
		b.outWidth, b.outHeight = b.cropHeight, b.cropWidth
	} else {
		b.outWidth, b.outHeight = b.cropWidth, b.cropHeight
	}
	b.out = make([]byte, b.outWidth*b.outHeight*bytesPerPixel)

	return b, nil
}

// OutputSize returns the dimensions of drawn frames.
func (b *Blitter) OutputSize() (int, int) {
	return b.outWidth, b.outHeight
}

// Draw renders one natural-orientation RGBA frame into the output buffer,
// applying the crop and rotation. The returned slice is reused across calls.
func (b *Blitter) Draw(src []byte) []byte {
	srcStride := b.srcWidth * bytesPerPixel
	dstStride := b.outWidth * bytesPerPixel

	switch b.rotation {
	case 90:
		// dst(dx,dy) = src(cropX+dy, cropY+cropHeight-1-dx)
		for dy := 0; dy < b.outHeight; dy++ {
			dstRow := dy * dstStride
			srcCol := (b.cropX + dy) * bytesPerPixel
			for dx := 0; dx < b.outWidth; dx++ {
				srcOff := (b.cropY+b.cropHeight-1-dx)*srcStride + srcCol
				copy(b.out[dstRow+dx*bytesPerPixel:dstRow+(dx+1)*bytesPerPixel], src[srcOff:srcOff+bytesPerPixel])
			}
		}
	case 180:
		// dst(dx,dy) = src(cropX+cropWidth-1-dx, cropY+cropHeight-1-dy)
		for dy := 0; dy < b.outHeight; dy++ {
			dstRow := dy * dstStride
			srcRow := (b.cropY + b.cropHeight - 1 - dy) * srcStride
			for dx := 0; dx < b.outWidth; dx++ {
				srcOff := srcRow + (b.cropX+b.cropWidth-1-dx)*bytesPerPixel
				copy(b.out[dstRow+dx*bytesPerPixel:dstRow+(dx+1)*bytesPerPixel], src[srcOff:srcOff+bytesPerPixel])
			}
		}
	case 270:
		// dst(dx,dy) = src(cropX+cropWidth-1-dy, cropY+dx)
		for dy := 0; dy < b.outHeight; dy++ {
			dstRow := dy * dstStride
			srcCol := (b.cropX + b.cropWidth - 1 - dy) * bytesPerPixel
			for dx := 0; dx < b.outWidth; dx++ {
				srcOff := (b.cropY+dx)*srcStride + srcCol
				copy(b.out[dstRow+dx*bytesPerPixel:dstRow+(dx+1)*bytesPerPixel], src[srcOff:srcOff+bytesPerPixel])
			}
		}
	default:
		// Pure crop: row-wise copy out of the source rectangle.
		for dy := 0; dy < b.outHeight; dy++ {
			srcOff := (b.cropY+dy)*srcStride + b.cropX*bytesPerPixel
			copy(b.out[dy*dstStride:(dy+1)*dstStride], src[srcOff:srcOff+dstStride])
		}
	}

	return b.out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// evenDimension rounds a pixel dimension down to the nearest even value, as
// required by 4:2:0 chroma subsampling on the encoder side.
func evenDimension(v int) int {
	return v &^ 1
}
