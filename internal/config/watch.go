package config

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// WatchEnvFile watches the working directory's .env file and invokes
// onChange whenever it's written, so a developer can flip LOG_LEVEL or
// similar knobs without restarting the process. This is a local-dev
// convenience only: the primary way to change sync behavior at runtime
// is the sync_config administrative table, which the scheduler reads at
// startup and the admin sync-config endpoint applies to the scheduler as
// it changes, independently of this watcher.
//
// Returns a no-op stop function if no .env file is present or the
// watcher can't be started; callers need not check for that case.
func WatchEnvFile(ctx context.Context, onChange func()) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}
	}

	if err := watcher.Add(".env"); err != nil {
		watcher.Close()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					loadEnvFile()
					if onChange != nil {
						onChange()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: .env watch error: %v", err)
			}
		}
	}()

	return func() {
		watcher.Close()
		<-done
	}
}
