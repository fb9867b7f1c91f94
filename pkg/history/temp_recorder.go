package history

import (
	"fmt"
	"os"
)

// MustGetTempRecorder returns a persistent Recorder backed by a temporary
// file, and a cleanup function that should be called when the Recorder is no
// longer used.
func MustGetTempRecorder(capacity int) (*Recorder, func()) {
	f, err := os.CreateTemp("", "uiwiz.test")
	if err != nil {
		panic(fmt.Sprintf("Failed to open temp file: %v", err))
	}
	f.Close()
	r, err := NewPersistent(f.Name(), capacity)
	if err != nil {
		panic(fmt.Sprintf("Failed to create Recorder instance: %v", err))
	}
	return r, func() {
		r.Close()
		err = os.Remove(f.Name())
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to remove temp file:", err)
		}
	}
}
