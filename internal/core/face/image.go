package face

import (
	"bytes"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// DecodeJPEG decodes a captured frame buffer, honoring EXIF orientation
func DecodeJPEG(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// EncodeJPEG renders img back to JPEG bytes at the given quality, 1..100
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Downscale resizes img by factor preserving aspect ratio
// factors at or above 1 (and nonsense factors) return img unchanged
func Downscale(img image.Image, factor float64) image.Image {
	if factor >= 1 || factor <= 0 {
		return img
	}
	w := int(math.Round(float64(img.Bounds().Dx()) * factor))
	if w < 1 {
		w = 1
	}
	return imaging.Resize(img, w, 0, imaging.Linear)
}

// Crop cuts the box region out of img with a margin fraction added on
// every side, clipped to the image bounds
func Crop(img image.Image, box BBox, margin float64) image.Image {
	mx := int(float64(box.Width()) * margin)
	my := int(float64(box.Height()) * margin)
	r := image.Rect(box.X1-mx, box.Y1-my, box.X2+mx, box.Y2+my)
	return imaging.Crop(img, r)
}

// ToRGB flattens img into a tightly packed 8 bit RGB buffer plus its
// dimensions, the raw layout the sidecar protocol expects
func ToRGB(img image.Image) ([]byte, int, int) {
	src := imaging.Clone(img) // *image.NRGBA, 4 bytes per pixel
	w := src.Bounds().Dx()
	h := src.Bounds().Dy()

	out := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out, w, h
}
