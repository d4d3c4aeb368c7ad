package transform

import (
	"fmt"
	"math"
)

// FrameGeometry describes the source video track's frame shape.
type FrameGeometry struct {
	// NaturalWidth and NaturalHeight are the raw pixel dimensions of the
	// encoded frames, before any orientation transform is applied.
	NaturalWidth  int
	NaturalHeight int
	// Preexisting is the orientation transform embedded in the source track,
	// commonly identity or a quarter/half turn baked in by the recording
	// device.
	Preexisting Affine
}

// DisplayDimensions returns the frame shape a viewer actually sees: the
// natural dimensions, swapped when the embedded orientation is a quarter
// turn. Crop aspect ratios and anchors are interpreted in this space.
func (g FrameGeometry) DisplayDimensions() (float64, float64) {
	w, h := float64(g.NaturalWidth), float64(g.NaturalHeight)
	if g.Preexisting.IsQuarterTurn() {
		return h, w
	}
	return w, h
}

// CropRect is a crop rectangle in natural (untransformed) pixel coordinates.
type CropRect struct {
	X, Y          float64
	Width, Height float64
}

// Output is the calculated result for one transformation: the affine matrix
// to apply to the video track, the output frame size, and the crop rectangle
// when the operation includes a crop.
type Output struct {
	// Transform is the matrix applied to the track (composition path) or to
	// the per-frame draw (pipeline path).
	Transform Affine
	// RenderWidth and RenderHeight are the output frame dimensions, always
	// expressed in display-oriented pixels.
	RenderWidth  int
	RenderHeight int
	// Crop, when non-nil, is a hard rectangle restriction on the source
	// track in natural coordinates. It is deliberately not baked into
	// Transform for combined operations, so the rotation component operates
	// on the already-cropped frame.
	Crop *CropRect
	// CropDisplayWidth and CropDisplayHeight are the crop dimensions in
	// display space, before any requested rotation.
	CropDisplayWidth  float64
	CropDisplayHeight float64
	// Angle is the requested rotation, zero when the operation is crop-only.
	Angle Angle
}

// Calculate derives the output transform for a request against a frame.
// It is a pure function: same inputs, same outputs, no side effects.
func Calculate(geom FrameGeometry, req Request) (Output, error) {
	if geom.NaturalWidth <= 0 || geom.NaturalHeight <= 0 {
		return Output{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, geom.NaturalWidth, geom.NaturalHeight)
	}

	switch req.Op {
	case OpRotate:
		return calculateRotate(geom, req.Angle)
	case OpCrop:
		return calculateCrop(geom, req)
	case OpCropRotate:
		return calculateCropRotate(geom, req)
	default:
		return Output{}, fmt.Errorf("unsupported operation %d", req.Op)
	}
}

// rotationFor returns the transform that rotates a w x h frame by the given
// angle and re-centers the result into the positive quadrant, along with the
// rotated output dimensions. Rotation alone pivots about the origin, which
// would leave the frame outside the visible area; the translation shifts it
// back.
func rotationFor(angle Angle, w, h float64) (Affine, float64, float64) {
	switch angle {
	case Angle90:
		return RotationDegrees(90).Then(Translation(h, 0)), h, w
	case Angle270:
		return RotationDegrees(-90).Then(Translation(0, w)), h, w
	case Angle180:
		return RotationDegrees(180).Then(Translation(w, h)), w, h
	default:
		return Identity(), w, h
	}
}

// OrientationFor returns the orientation matrix a recording device would
// embed for a track whose frames are stored width x height but displayed
// rotated by the given angle.
func OrientationFor(angle Angle, width, height int) Affine {
	t, _, _ := rotationFor(angle, float64(width), float64(height))
	return t
}

func calculateRotate(geom FrameGeometry, angle Angle) (Output, error) {
	if angle != Angle0 && angle != Angle90 && angle != Angle180 && angle != Angle270 {
		return Output{}, fmt.Errorf("%w: got %d", ErrInvalidAngle, angle)
	}

	w, h := float64(geom.NaturalWidth), float64(geom.NaturalHeight)
	t, outW, outH := rotationFor(angle, w, h)
	return Output{
		Transform:    t,
		RenderWidth:  roundDimension(outW),
		RenderHeight: roundDimension(outH),
		Angle:        angle,
	}, nil
}

// deriveCrop sizes the largest rectangle of the target aspect ratio that fits
// within the display-space frame, maps it back into natural coordinates, and
// positions it per the anchor. It returns the rectangle plus its display-space
// dimensions.
func deriveCrop(geom FrameGeometry, ratio AspectRatio, anchor Anchor) (CropRect, float64, float64, error) {
	if ratio.Width <= 0 || ratio.Height <= 0 {
		return CropRect{}, 0, 0, fmt.Errorf("%w: %g:%g", ErrInvalidAspectRatio, ratio.Width, ratio.Height)
	}
	if anchor == "" {
		anchor = AnchorCenter
	}
	factors, ok := anchorFactors[anchor]
	if !ok {
		return CropRect{}, 0, 0, fmt.Errorf("%w: %q", ErrInvalidAnchor, anchor)
	}

	targetRatio := ratio.Value()
	dispW, dispH := geom.DisplayDimensions()

	// Shrink whichever display dimension must give way to reach the target
	// ratio; the other is kept whole.
	var cropDispW, cropDispH float64
	if targetRatio > dispW/dispH {
		cropDispW = dispW
		cropDispH = dispW / targetRatio
	} else {
		cropDispH = dispH
		cropDispW = dispH * targetRatio
	}

	// Back into natural coordinates: quarter-turned sources swap again.
	cropW, cropH := cropDispW, cropDispH
	if geom.Preexisting.IsQuarterTurn() {
		cropW, cropH = cropH, cropW
	}

	natW, natH := float64(geom.NaturalWidth), float64(geom.NaturalHeight)
	rect := CropRect{
		X:      factors[0] * (natW - cropW),
		Y:      factors[1] * (natH - cropH),
		Width:  cropW,
		Height: cropH,
	}
	return rect, cropDispW, cropDispH, nil
}

func calculateCrop(geom FrameGeometry, req Request) (Output, error) {
	rect, dispW, dispH, err := deriveCrop(geom, req.Ratio, req.Anchor)
	if err != nil {
		return Output{}, err
	}

	renderW := roundDimension(dispW)
	renderH := roundDimension(dispH)

	// Map the crop rectangle to fill the render surface: shift its origin to
	// (0,0), then scale natural crop pixels up to render pixels. Applied in
	// natural space, after the embedded orientation.
	fill := Translation(-rect.X, -rect.Y).Then(Scaling(float64(renderW)/rect.Width, float64(renderH)/rect.Height))

	return Output{
		Transform:         geom.Preexisting.Then(fill),
		RenderWidth:       renderW,
		RenderHeight:      renderH,
		Crop:              &rect,
		CropDisplayWidth:  dispW,
		CropDisplayHeight: dispH,
	}, nil
}

func calculateCropRotate(geom FrameGeometry, req Request) (Output, error) {
	rect, dispW, dispH, err := deriveCrop(geom, req.Ratio, req.Anchor)
	if err != nil {
		return Output{}, err
	}

	// Rotation is computed from the cropped display dimensions, not the
	// original frame: the crop is applied as a hard rectangle restriction
	// before the rotation transform ever sees the frame.
	rot, outW, outH := rotationFor(req.Angle, dispW, dispH)

	return Output{
		Transform:         geom.Preexisting.Then(rot),
		RenderWidth:       roundDimension(outW),
		RenderHeight:      roundDimension(outH),
		Crop:              &rect,
		CropDisplayWidth:  dispW,
		CropDisplayHeight: dispH,
		Angle:             req.Angle,
	}, nil
}

func roundDimension(v float64) int {
	return int(math.Round(v))
}
