package artwork

import (
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// Wall dimensions for the library poster collage.
const (
	collageWidth  = 4200
	collageHeight = 3000
)

// CollectPosters walks root and returns every file named posterName,
// e.g. "poster.jpg" under a movie library or "show_poster.jpg" under a
// show library.
func CollectPosters(root, posterName string) []string {
	var out []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if d.Name() == posterName {
			out = append(out, path)
		}
		return nil
	})
	return out
}

// Collage tiles the posters into one wall image at dest, cycling through the
// list until the canvas is full. Rows start past the left edge so the wall
// shows no empty border.
func Collage(posters []string, dest string) error {
	canvas, err := renderCollage(posters, collageWidth, collageHeight)
	if err != nil {
		return err
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, canvas, &jpeg.Options{Quality: 85}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode collage: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func renderCollage(posters []string, width, height int) (*image.RGBA, error) {
	if len(posters) == 0 {
		return nil, fmt.Errorf("no posters to tile")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	maxW := int(float64(width) / 6.7)
	maxH := int(float64(height) / 6.7)

	x, y := -width/4, -15
	next, misses := 0, 0
	for y < height {
		src, err := loadImage(posters[next%len(posters)])
		next++
		if err != nil {
			misses++
			if misses >= len(posters) {
				return nil, fmt.Errorf("no decodable posters")
			}
			continue
		}
		misses = 0

		tw, th := thumbSize(src.Bounds(), maxW, maxH)
		xdraw.ApproxBiLinear.Scale(canvas, image.Rect(x, y, x+tw, y+th), src, src.Bounds(), xdraw.Over, nil)

		x += tw
		if x >= width {
			x = -width / 10
			y += th
		}
	}
	return canvas, nil
}

// thumbSize fits an image into maxW x maxH preserving aspect ratio, never
// scaling up.
func thumbSize(b image.Rectangle, maxW, maxH int) (int, int) {
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}
	tw, th := int(float64(w)*scale), int(float64(h)*scale)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
