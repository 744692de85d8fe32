package img2map

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/wbrown/img2map/imageutil"
)

// Watch converts every image in inDir, then keeps converting images that
// are created or rewritten there until ctx is done. Per-file failures are
// logged and reported through the progress callback; only fatal errors end
// the watch early.
func (c *Converter) Watch(ctx context.Context, inDir, outDir string) error {
	if outDir == "" {
		outDir = inDir
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return newError(ErrDirectory, inDir, err)
	}
	defer watcher.Close()

	if err := watcher.Add(inDir); err != nil {
		return newError(ErrDirectory, inDir, err)
	}

	if _, err := c.ConvertDirectory(inDir, outDir); err != nil {
		return err
	}
	c.logger.Info("watching for changes", "dir", inDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watch error", "err", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !imageutil.IsImagePath(ev.Name) {
				continue
			}
			if _, err := c.ConvertFiles([]string{ev.Name}, outDir); err != nil {
				return err
			}
		}
	}
}

