// Procedural fallback scene renderer. When the image provider fails for a
// slot, the slot still gets a deterministic painted scene: sky and ground
// bands, a mountain ridge, a tree, a sun, a scene-keyword silhouette, and
// a slot label. If even drawing the scene fails, the renderer degrades to
// a flat card with the label, never an empty slot.
package generation

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder canvas dimensions, kept small for fast generation.
const (
	placeholderWidth  = 512
	placeholderHeight = 384
)

var (
	skyBlue    = color.RGBA{135, 206, 235, 255}
	groundSoil = color.RGBA{139, 69, 19, 255}
	darkWood   = color.RGBA{101, 67, 33, 255}
	leafGreen  = color.RGBA{34, 139, 34, 255}
	sunYellow  = color.RGBA{255, 255, 0, 255}
	saffron    = color.RGBA{255, 140, 0, 255}
	deepBlue   = color.RGBA{0, 100, 200, 255}
	gold       = color.RGBA{255, 215, 0, 255}
	skinTone   = color.RGBA{255, 220, 177, 255}
)

// figureRule maps scene keywords to the silhouette drawn for them. Rules
// are evaluated in order; the first rule with any matching keyword wins.
type figureRule struct {
	keywords []string
	body     func(scene string) color.RGBA
	head     color.RGBA
	wide     bool
}

var figureRules = []figureRule{
	{
		keywords: []string{"hanuman", "monkey", "vanara"},
		body:     func(string) color.RGBA { return saffron },
		head:     saffron,
		wide:     true,
	},
	{
		keywords: []string{"krishna", "rama", "lord"},
		body: func(scene string) color.RGBA {
			if strings.Contains(strings.ToLower(scene), "krishna") {
				return deepBlue
			}
			return gold
		},
		head: skinTone,
	},
}

// RenderPlaceholder writes a painted placeholder PNG for the given slot
// (1-based) to w. Any drawing failure falls through to the flat-card
// variant; the function itself never panics.
func RenderPlaceholder(w io.Writer, scene string, slot int) error {
	img, err := paintScene(scene, slot)
	if err != nil {
		img = paintCard(slot)
	}
	return png.Encode(w, img)
}

func paintScene(scene string, slot int) (img *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, errDrawFailed
		}
	}()

	const wd, ht = placeholderWidth, placeholderHeight
	img = image.NewRGBA(image.Rect(0, 0, wd, ht))

	// Sky and ground bands.
	draw.Draw(img, image.Rect(0, 0, wd, ht/2), image.NewUniform(skyBlue), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, ht/2, wd, ht), image.NewUniform(groundSoil), image.Point{}, draw.Src)

	// Mountain ridge along the horizon.
	fillTriangle(img, wd/6, ht/2, wd/3, ht/2-60, wd/2, ht/2, darkWood)
	fillTriangle(img, wd/2, ht/2, 2*wd/3, ht/2-40, 5*wd/6, ht/2, darkWood)

	// Tree: trunk plus crown.
	treeX := wd / 4
	draw.Draw(img, image.Rect(treeX-3, ht/2, treeX+3, ht/2+30), image.NewUniform(darkWood), image.Point{}, draw.Src)
	fillEllipse(img, treeX-15, ht/2-15, treeX+15, ht/2+15, leafGreen)

	// Scene-keyword silhouette at center stage.
	low := strings.ToLower(scene)
	for _, rule := range figureRules {
		if !matchesAny(low, rule.keywords) {
			continue
		}
		fx, fy := wd/2, ht/2+20
		if rule.wide {
			fillEllipse(img, fx-10, fy, fx+10, fy+40, rule.body(scene))
			fillEllipse(img, fx-8, fy-15, fx+8, fy+5, rule.head)
		} else {
			fillEllipse(img, fx-8, fy, fx+8, fy+35, rule.body(scene))
			fillEllipse(img, fx-6, fy-12, fx+6, fy+3, rule.head)
		}
		break
	}

	// Sun in the top-right corner.
	fillEllipse(img, wd-60, 20, wd-20, 60, sunYellow)

	drawLabel(img, slotLabel(slot), color.RGBA{0, 0, 0, 255}, 10)
	return img, nil
}

// paintCard is the innermost degrade: a flat earth-tone card with the slot
// label.
func paintCard(slot int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(darkWood), image.Point{}, draw.Src)
	drawLabel(img, "Story Illustration "+slotDigits(slot), color.RGBA{255, 255, 255, 255}, placeholderHeight/2)
	return img
}

var errDrawFailed = errDraw{}

type errDraw struct{}

func (errDraw) Error() string { return "placeholder drawing failed" }

func slotLabel(slot int) string { return "Scene " + slotDigits(slot) }

func slotDigits(slot int) string {
	if slot < 1 || slot > 9 {
		return "?"
	}
	return string(rune('0' + slot))
}

func matchesAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// drawLabel renders text horizontally centered at the given y offset using
// the basicfont face.
func drawLabel(img *image.RGBA, text string, col color.RGBA, y int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I((img.Bounds().Dx() - width) / 2),
			Y: fixed.I(y + face.Ascent),
		},
	}
	d.DrawString(text)
}

// fillEllipse fills the ellipse inscribed in the given bounding box.
func fillEllipse(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	cx := float64(x0+x1) / 2
	cy := float64(y0+y1) / 2
	rx := float64(x1-x0) / 2
	ry := float64(y1-y0) / 2
	if rx <= 0 || ry <= 0 {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			if dx*dx+dy*dy <= 1 {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

// fillTriangle fills the triangle (x0,y0)-(x1,y1)-(x2,y2) by scanline.
func fillTriangle(img *image.RGBA, x0, y0, x1, y1, x2, y2 int, col color.RGBA) {
	minY, maxY := y0, y0
	for _, y := range []int{y1, y2} {
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	minX, maxX := x0, x0
	for _, x := range []int{x1, x2} {
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(x, y, x0, y0, x1, y1, x2, y2) {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func pointInTriangle(px, py, x0, y0, x1, y1, x2, y2 int) bool {
	d1 := sign(px, py, x0, y0, x1, y1)
	d2 := sign(px, py, x1, y1, x2, y2)
	d3 := sign(px, py, x2, y2, x0, y0)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

func sign(px, py, ax, ay, bx, by int) int {
	return (px-bx)*(ay-by) - (ax-bx)*(py-by)
}
