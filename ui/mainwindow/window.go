// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"net/url"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"card-scanner/internal/camera"
	"card-scanner/internal/overlay"
	"card-scanner/internal/pipeline"
	"card-scanner/internal/version"
	"card-scanner/ui/preview"
)

const (
	appTitle       = "Card Scanner"
	prefKeyLastDir = "lastDirectory"
)

// MainWindow is the primary application window. It implements
// pipeline.Notifier and pipeline.Opener.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	preview   *preview.Preview
	statusBar *widget.Label
	cardLabel *widget.Label

	onScanImage func(path string)
}

// New creates a new main window showing ov over the camera preview.
func New(fyneApp fyne.App, ov *overlay.State) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
	}

	mw.setupUI(ov)
	mw.setupMenus()
	win.Resize(fyne.NewSize(720, 960))

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI(ov *overlay.State) {
	mw.preview = preview.New(ov)
	mw.statusBar = widget.NewLabel("Point the camera at a card")
	mw.cardLabel = widget.NewLabel("")

	bottom := container.NewVBox(
		container.NewPadded(mw.cardLabel),
		container.NewPadded(mw.statusBar),
	)
	mw.SetContent(container.NewBorder(nil, bottom, nil, nil, mw.preview))
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Scan Image...", mw.onScanImageMenu),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)
	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, helpMenu))
}

// Preview returns the camera preview widget.
func (mw *MainWindow) Preview() *preview.Preview {
	return mw.preview
}

// OnScanImage sets the handler for File > Scan Image.
func (mw *MainWindow) OnScanImage(fn func(path string)) {
	mw.onScanImage = fn
}

// Notify shows a short message in the status bar.
func (mw *MainWindow) Notify(message string) {
	mw.updateStatus(message)
}

// Open opens a card page in the system browser.
func (mw *MainWindow) Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse card url: %w", err)
	}
	mw.updateStatus("Opening " + rawURL)
	return mw.app.OpenURL(u)
}

// ShowOutcome reflects one analyzed frame in the card label.
func (mw *MainWindow) ShowOutcome(o pipeline.Outcome) {
	switch o.Stage {
	case pipeline.OutcomeIdentified:
		text := o.ID.String()
		if o.Resolving {
			text += " (looking up)"
		}
		mw.cardLabel.SetText(text)
	case pipeline.OutcomeNoDetection:
		mw.cardLabel.SetText("")
	}
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.app.Preferences().SetString(prefKeyLastDir, filepath.Dir(filePath))
}

func (mw *MainWindow) onScanImageMenu() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		mw.saveLastDir(path)
		if mw.onScanImage != nil {
			mw.onScanImage(path)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(camera.SupportedFormats()))
	if dir := mw.getLastDir(); dir != nil {
		fd.SetLocation(dir)
	}
	fd.Show()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Reads the set code and number of a trading card\n"+
			"and links to its card page.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
