package artwork

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/bbrks/go-blurhash"
)

// Components per the original blurhash CLI: 4 horizontal, 3 vertical.
const (
	xComponents = 4
	yComponents = 3
)

// Sidecar is the JSON document written next to each processed image.
type Sidecar struct {
	Blurhash    string    `json:"blurhash"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	GeneratedAt time.Time `json:"generated_at"`
}

// EncodeFile computes the blurhash of an image on disk.
func EncodeFile(path string) (*Sidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	hash, err := blurhash.Encode(xComponents, yComponents, img)
	if err != nil {
		return nil, fmt.Errorf("encode blurhash for %s: %w", path, err)
	}

	bounds := img.Bounds()
	return &Sidecar{
		Blurhash:    hash,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// WriteSidecar encodes imagePath and writes "<imagePath>.blurhash.json".
// Returns the hash string for storage on the media row.
func WriteSidecar(imagePath string) (string, error) {
	sc, err := EncodeFile(imagePath)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(imagePath+".blurhash.json", data, 0o644); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	return sc.Blurhash, nil
}

// HasSidecar reports whether a current sidecar already exists for the image:
// present and at least as new as the image itself.
func HasSidecar(imagePath string) bool {
	img, err := os.Stat(imagePath)
	if err != nil {
		return false
	}
	sc, err := os.Stat(imagePath + ".blurhash.json")
	if err != nil {
		return false
	}
	return !sc.ModTime().Before(img.ModTime())
}
