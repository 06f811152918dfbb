package display

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// PNG renders a snapshot: one column per bar, LED 0 at the bottom.
func PNG(s Snapshot) ([]byte, error) {
	const (
		cellW  = 24
		cellH  = 10
		border = 2
		width  = Bars * cellW
		height = Height * cellH
	)

	img := image.NewRGBA(image.Rect(0, 0, width, height))

	colBorder := color.RGBA{0, 0, 0, 255}
	colOff := color.RGBA{40, 40, 40, 255}
	colPeak := color.RGBA{255, 60, 60, 255}
	colOn := ledColor(s.Brightness)
	if s.Letter != NoLetter {
		colOn = color.RGBA{colOn.R, colOn.G / 2, 255, 255}
	}

	draw.Draw(img, img.Bounds(), &image.Uniform{colBorder}, image.Point{}, draw.Src)

	for c := 0; c < Bars; c++ {
		for r := 0; r < Height; r++ {
			// r=0 is the bottom LED; image Y grows downwards.
			y := (Height - 1 - r) * cellH
			x := c * cellW

			fill := colOff
			switch {
			case !s.On:
			case r < int(s.Bars[c]):
				fill = colOn
			case r == s.Peaks[c]:
				fill = colPeak
			}

			rect := image.Rect(x+border, y+border, x+cellW-border, y+cellH-border)
			draw.Draw(img, rect, &image.Uniform{fill}, image.Point{}, draw.Src)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ledColor(level uint8) color.RGBA {
	g := 80 + int(level)*175/MaxBrightness
	return color.RGBA{uint8(g / 3), uint8(g), uint8(g / 4), 255}
}
