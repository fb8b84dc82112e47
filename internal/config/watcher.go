package config

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// ReloadMsg tells the UI the config file changed on disk.
type ReloadMsg struct{}

// WatchDisabledMsg tells the UI config watching is off for the rest of the
// run, so edits to the file will not be picked up live.
type WatchDisabledMsg struct{}

// Watch blocks until the config file changes, then delivers a ReloadMsg. The
// UI re-issues the command after each reload, like a tick. When the watch
// cannot be established it delivers a WatchDisabledMsg instead of going
// silent.
func Watch() tea.Cmd {
	return func() tea.Msg {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return WatchDisabledMsg{}
		}
		defer w.Close()

		// Watch the directory, not the file: editors replace the file and
		// break a direct watch. The directory may not exist on first run.
		_ = os.MkdirAll(ConfigDir(), 0o755)
		if err := w.Add(ConfigDir()); err != nil {
			return WatchDisabledMsg{}
		}

		// Debounce: wait for changes to settle
		debounce := time.NewTimer(time.Hour)
		debounce.Stop()

		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return WatchDisabledMsg{}
				}
				debounce.Reset(500 * time.Millisecond)
			case <-debounce.C:
				return ReloadMsg{}
			case <-w.Errors:
				continue
			}
		}
	}
}
