// Package app holds process-level helpers for the desktop scanner: its theme
// and the development restart watcher.
package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// ScannerTheme darkens the background around the camera preview and uses the
// overlay yellow as the primary color.
type ScannerTheme struct{}

var _ fyne.Theme = (*ScannerTheme)(nil)

func (t *ScannerTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0xFF, G: 0xEB, B: 0x3B, A: 0xFF}
	case theme.ColorNameBackground:
		return color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *ScannerTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *ScannerTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *ScannerTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNameText:
		return 16
	default:
		return theme.DefaultTheme().Size(name)
	}
}
