package transform

import (
	"errors"
	"testing"
)

func TestParseAngle(t *testing.T) {
	tests := []struct {
		degrees int
		want    Angle
		wantErr bool
	}{
		{90, Angle90, false},
		{-90, Angle270, false},
		{180, Angle180, false},
		{270, Angle270, false},
		{0, 0, true},
		{45, 0, true},
		{-180, 0, true},
		{360, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseAngle(tt.degrees)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidAngle) {
				t.Errorf("ParseAngle(%d): expected ErrInvalidAngle, got %v", tt.degrees, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAngle(%d): unexpected error %v", tt.degrees, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAngle(%d) = %d, want %d", tt.degrees, got, tt.want)
		}
	}
}

func TestParseAspectRatio(t *testing.T) {
	t.Run("valid ratios", func(t *testing.T) {
		tests := []struct {
			input string
			want  float64
		}{
			{"16:9", 16.0 / 9.0},
			{"1:1", 1},
			{"9:16", 9.0 / 16.0},
			{"2.35:1", 2.35},
			{" 4:3 ", 4.0 / 3.0},
		}
		for _, tt := range tests {
			r, err := ParseAspectRatio(tt.input)
			if err != nil {
				t.Errorf("ParseAspectRatio(%q): unexpected error %v", tt.input, err)
				continue
			}
			if !almostEqual(r.Value(), tt.want) {
				t.Errorf("ParseAspectRatio(%q).Value() = %g, want %g", tt.input, r.Value(), tt.want)
			}
		}
	})

	t.Run("invalid ratios", func(t *testing.T) {
		for _, input := range []string{"16", "a:b", "16:9:1", "", ":", "16:", "-16:9", "16:0", "0:9"} {
			_, err := ParseAspectRatio(input)
			if !errors.Is(err, ErrInvalidAspectRatio) {
				t.Errorf("ParseAspectRatio(%q): expected ErrInvalidAspectRatio, got %v", input, err)
			}
		}
	})
}

func TestParseAnchor(t *testing.T) {
	t.Run("defaults to center", func(t *testing.T) {
		a, err := ParseAnchor("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a != AnchorCenter {
			t.Errorf("ParseAnchor(\"\") = %q, want center", a)
		}
	})

	t.Run("all nine anchors", func(t *testing.T) {
		names := []string{
			"center", "top", "bottom", "left", "right",
			"top-left", "top-right", "bottom-left", "bottom-right",
		}
		for _, name := range names {
			if _, err := ParseAnchor(name); err != nil {
				t.Errorf("ParseAnchor(%q): unexpected error %v", name, err)
			}
		}
	})

	t.Run("unknown anchor", func(t *testing.T) {
		_, err := ParseAnchor("middle")
		if !errors.Is(err, ErrInvalidAnchor) {
			t.Errorf("expected ErrInvalidAnchor, got %v", err)
		}
	})
}

func TestNewRotateRejectsIllegalAngle(t *testing.T) {
	if _, err := NewRotate(45); !errors.Is(err, ErrInvalidAngle) {
		t.Errorf("expected ErrInvalidAngle, got %v", err)
	}
}

func TestNewCropRotateValidatesBothParts(t *testing.T) {
	if _, err := NewCropRotate("16", "center", 90); !errors.Is(err, ErrInvalidAspectRatio) {
		t.Errorf("expected ErrInvalidAspectRatio, got %v", err)
	}
	if _, err := NewCropRotate("16:9", "center", 30); !errors.Is(err, ErrInvalidAngle) {
		t.Errorf("expected ErrInvalidAngle, got %v", err)
	}
	req, err := NewCropRotate("16:9", "", -90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Op != OpCropRotate || req.Angle != Angle270 || req.Anchor != AnchorCenter {
		t.Errorf("unexpected request: %+v", req)
	}
}
