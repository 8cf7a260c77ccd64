package app

// ─────────────────────────────────────────────────────────────
// Folder Viewer Handlers — browse generated files on disk
// ─────────────────────────────────────────────────────────────

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"galleries/internal/presenter"
	"galleries/internal/service"
)

// PickFolder opens a native directory picker.
func (a *App) PickFolder() (string, error) {
	return wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title: "Select Generations Folder",
	})
}

func (a *App) OpenFolder(dir, domainName, concept, outputDir string) (presenter.GridView, error) {
	if err := a.folders.Open(a.ctx, dir, domainName, concept, outputDir); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[VIEWER] open %s: %v", dir, err)
		return presenter.GridView{}, err
	}
	return a.folders.View(a.ctx)
}

func (a *App) CloseFolder() {
	a.folders.Close()
}

func (a *App) ListFolderFiles() ([]service.FolderFile, error) {
	return a.folders.Files()
}

// GetFolderView renders the folder's files; the frontend calls it again
// after a viewer:files-changed event.
func (a *App) GetFolderView() (presenter.GridView, error) {
	return a.folders.View(a.ctx)
}

func (a *App) SelectFolderFile(name string) error {
	return a.folders.Select(name)
}

func (a *App) SelectedFolderFile() string {
	return a.folders.Selected()
}

func (a *App) AddFolderFeedback(name, text string) error {
	return a.folders.AddFeedback(name, text)
}

func (a *App) GetFolderFeedback(name string) []string {
	return a.folders.Feedback(name)
}

func (a *App) SaveSelectedFolderFile() (string, error) {
	path, err := a.folders.SaveSelected()
	if err != nil {
		return "", err
	}
	wailsRuntime.LogInfof(a.ctx, "[VIEWER] saved %s", path)
	return path, nil
}
