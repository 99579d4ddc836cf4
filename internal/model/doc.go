// Package model defines the data types flowing through the sync
// pipeline: collection items, resolved downloads, per-item results and
// the audio format set.
//
// Types here are plain values with no I/O. File naming lives here too,
// since names are derived purely from item metadata:
//
//	downloads := []*model.ResolvedDownload{...}
//	model.AssignFileNames(downloads, model.NameConfig{})
//	for _, d := range downloads {
//	    fmt.Println(d.FileName) // "Artist - Title.flac"
//	}
package model
