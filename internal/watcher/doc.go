// Package watcher keeps a dataset manifest in step with the files on disk.
//
// A HybridWatcher uses fsnotify when it can and falls back to polling
// (network mounts, some container volumes). Raw events are debounced so that
// a burst of writes to one file becomes a single event, then delivered in
// batches. An Applier turns those batches into manifest upserts and deletes.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, datasetDir) }()
//
//	applier := watcher.NewApplier(manifest, scanner.New(reg), datasetDir, nil)
//	for batch := range w.Events() {
//	    if _, err := applier.Apply(ctx, batch); err != nil {
//	        return err
//	    }
//	}
package watcher
