package app

import (
	"image/color"
	"testing"

	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestScannerThemeColors(t *testing.T) {
	th := &ScannerTheme{}
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xEB, B: 0x3B, A: 0xFF},
		th.Color(theme.ColorNamePrimary, theme.VariantDark))
	assert.Equal(t, theme.DefaultTheme().Color(theme.ColorNameError, theme.VariantDark),
		th.Color(theme.ColorNameError, theme.VariantDark))
	assert.Equal(t, float32(16), th.Size(theme.SizeNameText))
}

func TestHotReloaderWatchesExecutable(t *testing.T) {
	h := NewHotReloader()
	if h == nil {
		t.Skip("executable directory cannot be watched")
	}
	defer h.Stop()
	assert.NotEmpty(t, h.ExecPath())
	h.Stop()
}
