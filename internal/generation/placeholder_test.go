package generation

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func decodePlaceholder(t *testing.T, scene string, slot int) image.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderPlaceholder(&buf, scene, slot); err != nil {
		t.Fatalf("RenderPlaceholder: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func TestRenderPlaceholder_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := RenderPlaceholder(&a, "Hanuman leaps", 1); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := RenderPlaceholder(&b, "Hanuman leaps", 1); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("same scene/slot should render identical bytes")
	}
}

func TestRenderPlaceholder_Composition(t *testing.T) {
	img := decodePlaceholder(t, "a quiet grove", 2)
	b := img.Bounds()
	if b.Dx() != placeholderWidth || b.Dy() != placeholderHeight {
		t.Fatalf("canvas = %dx%d", b.Dx(), b.Dy())
	}

	// Sky band up top, ground band below the horizon.
	if got := img.At(5, 5); !sameColor(got, skyBlue) {
		t.Errorf("top-left should be sky, got %v", got)
	}
	if got := img.At(placeholderWidth-5, placeholderHeight-5); !sameColor(got, groundSoil) {
		t.Errorf("bottom-right should be ground, got %v", got)
	}
	// Sun center.
	if got := img.At(placeholderWidth-40, 40); !sameColor(got, sunYellow) {
		t.Errorf("sun missing, got %v", got)
	}
}

func TestRenderPlaceholder_FigureRules(t *testing.T) {
	cx, cy := placeholderWidth/2, placeholderHeight/2+40 // inside the figure body

	if got := decodePlaceholder(t, "Hanuman crosses the ocean", 1).At(cx, cy); !sameColor(got, saffron) {
		t.Errorf("hanuman scene should draw saffron figure, got %v", got)
	}
	if got := decodePlaceholder(t, "Krishna plays the flute", 1).At(cx, cy); !sameColor(got, deepBlue) {
		t.Errorf("krishna scene should draw blue figure, got %v", got)
	}
	if got := decodePlaceholder(t, "Lord of the mountain", 1).At(cx, cy); !sameColor(got, gold) {
		t.Errorf("generic lord scene should draw gold figure, got %v", got)
	}
	// No keyword: no figure, ground shows through.
	if got := decodePlaceholder(t, "a river in the hills", 1).At(cx, cy); !sameColor(got, groundSoil) {
		t.Errorf("plain scene should have no figure, got %v", got)
	}
}

func sameColor(c interface{ RGBA() (r, g, b, a uint32) }, want interface {
	RGBA() (r, g, b, a uint32)
}) bool {
	r1, g1, b1, a1 := c.RGBA()
	r2, g2, b2, a2 := want.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}
