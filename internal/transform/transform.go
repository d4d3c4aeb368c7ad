// Package transform implements the geometry calculations for video
// transformations. It derives the affine transform, output render size and
// crop rectangle for rotate, crop and combined crop+rotate operations, given
// a frame's natural dimensions and any orientation transform already embedded
// in the source track.
//
// Everything in this package is pure computation: no I/O, no ffmpeg.
package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Static errors for request parsing and validation.
var (
	// ErrInvalidAngle is returned when a rotation angle is not 90, -90, 180 or 270.
	ErrInvalidAngle = errors.New("invalid angle: must be 90, -90, 180 or 270")
	// ErrInvalidAspectRatio is returned when an aspect ratio string does not
	// parse to two positive numbers separated by a colon.
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	// ErrInvalidAnchor is returned when an anchor name is not recognized.
	ErrInvalidAnchor = errors.New("invalid anchor")
	// ErrInvalidDimensions is returned when frame dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
)

// Angle is a normalized rotation angle in degrees. Negative input angles are
// normalized at parse time, so the only values are 0, 90, 180 and 270.
type Angle int

// Legal rotation angles.
const (
	Angle0   Angle = 0
	Angle90  Angle = 90
	Angle180 Angle = 180
	Angle270 Angle = 270
)

// ParseAngle validates and normalizes a user-supplied rotation angle.
// -90 is normalized to 270. Any value outside {90, -90, 180, 270} is rejected.
func ParseAngle(degrees int) (Angle, error) {
	switch degrees {
	case 90:
		return Angle90, nil
	case 180:
		return Angle180, nil
	case -90, 270:
		return Angle270, nil
	default:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidAngle, degrees)
	}
}

// swapsDimensions reports whether rotating by the angle swaps width and height.
func (a Angle) swapsDimensions() bool {
	return a == Angle90 || a == Angle270
}

// Anchor names the position within the frame where a crop rectangle is placed.
type Anchor string

// Supported crop anchors.
const (
	AnchorCenter      Anchor = "center"
	AnchorTop         Anchor = "top"
	AnchorBottom      Anchor = "bottom"
	AnchorLeft        Anchor = "left"
	AnchorRight       Anchor = "right"
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
)

// anchorFactors maps each anchor to its horizontal and vertical placement
// factor: 0 pins the crop to the low edge, 1 to the high edge, 0.5 centers it.
var anchorFactors = map[Anchor][2]float64{
	AnchorCenter:      {0.5, 0.5},
	AnchorTop:         {0.5, 0},
	AnchorBottom:      {0.5, 1},
	AnchorLeft:        {0, 0.5},
	AnchorRight:       {1, 0.5},
	AnchorTopLeft:     {0, 0},
	AnchorTopRight:    {1, 0},
	AnchorBottomLeft:  {0, 1},
	AnchorBottomRight: {1, 1},
}

// ParseAnchor validates an anchor name. An empty string defaults to center.
func ParseAnchor(s string) (Anchor, error) {
	if s == "" {
		return AnchorCenter, nil
	}
	a := Anchor(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := anchorFactors[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAnchor, s)
	}
	return a, nil
}

// AspectRatio is a positive rational width:height ratio.
type AspectRatio struct {
	Width  float64
	Height float64
}

// Value returns the ratio as a single number (width divided by height).
func (r AspectRatio) Value() float64 {
	return r.Width / r.Height
}

// ParseAspectRatio parses a "W:H" string into an AspectRatio. Both parts must
// parse to positive numbers; anything else is rejected before any file is
// touched.
func ParseAspectRatio(s string) (AspectRatio, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return AspectRatio{}, fmt.Errorf("%w: %q must have exactly two parts separated by a colon", ErrInvalidAspectRatio, s)
	}

	w, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return AspectRatio{}, fmt.Errorf("%w: %q is not a number", ErrInvalidAspectRatio, parts[0])
	}
	h, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return AspectRatio{}, fmt.Errorf("%w: %q is not a number", ErrInvalidAspectRatio, parts[1])
	}
	if w <= 0 || h <= 0 {
		return AspectRatio{}, fmt.Errorf("%w: %q components must be positive", ErrInvalidAspectRatio, s)
	}

	return AspectRatio{Width: w, Height: h}, nil
}

// Op identifies a transformation operation kind.
type Op int

// Supported operations.
const (
	// OpRotate rotates the frame by a quarter or half turn.
	OpRotate Op = iota
	// OpCrop crops the frame to a target aspect ratio at an anchor position.
	OpCrop
	// OpCropRotate crops first, then rotates the cropped result.
	OpCropRotate
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpRotate:
		return "rotate"
	case OpCrop:
		return "crop"
	case OpCropRotate:
		return "crop-rotate"
	default:
		return "unknown"
	}
}

// Request describes a single transformation to apply to a video track.
type Request struct {
	// Op is the operation kind.
	Op Op
	// Angle is the rotation angle. Used by OpRotate and OpCropRotate.
	Angle Angle
	// Ratio is the target crop aspect ratio. Used by OpCrop and OpCropRotate.
	Ratio AspectRatio
	// Anchor positions the crop rectangle. Used by OpCrop and OpCropRotate.
	Anchor Anchor
}

// NewRotate builds a validated rotate request.
func NewRotate(degrees int) (Request, error) {
	angle, err := ParseAngle(degrees)
	if err != nil {
		return Request{}, err
	}
	return Request{Op: OpRotate, Angle: angle}, nil
}

// NewCrop builds a validated crop request. An empty anchor defaults to center.
func NewCrop(ratio, anchor string) (Request, error) {
	r, err := ParseAspectRatio(ratio)
	if err != nil {
		return Request{}, err
	}
	a, err := ParseAnchor(anchor)
	if err != nil {
		return Request{}, err
	}
	return Request{Op: OpCrop, Ratio: r, Anchor: a}, nil
}

// NewCropRotate builds a validated combined crop+rotate request.
func NewCropRotate(ratio, anchor string, degrees int) (Request, error) {
	req, err := NewCrop(ratio, anchor)
	if err != nil {
		return Request{}, err
	}
	angle, err := ParseAngle(degrees)
	if err != nil {
		return Request{}, err
	}
	req.Op = OpCropRotate
	req.Angle = angle
	return req, nil
}
