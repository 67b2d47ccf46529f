package display

import "image"

// Device is the rendering surface the monitor draws to. The pipeline only
// depends on this interface; the ST7735 implementation below is one
// provider, tests substitute their own.
type Device interface {
	// Draw pushes a full frame to the panel.
	Draw(img image.Image) error
	// SetBacklight switches the panel backlight.
	SetBacklight(on bool) error
	// Bounds reports the drawable area for layout.
	Bounds() image.Rectangle
}
