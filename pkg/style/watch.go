package style

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"src.uiwiz.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[style] ")

// WatchTheme watches a theme file and calls onChange with the re-loaded
// theme whenever it is written. onChange runs on the watcher's goroutine;
// the caller must marshal any engine work (wizard.App.Post). Load errors are
// logged and skipped, so a half-saved file does not kill the watch.
//
// The returned stop function ends the watch.
func WatchTheme(fname string, onChange func(*Theme)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors often replace the file, which would end
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(fname)); err != nil {
		watcher.Close()
		return nil, err
	}
	base := filepath.Base(fname)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base ||
					event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				theme, err := LoadTheme(fname)
				if err != nil {
					logger.Printf("reload %s: %v", fname, err)
					continue
				}
				onChange(theme)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Printf("watch %s: %v", fname, err)
			}
		}
	}()
	return watcher.Close, nil
}
