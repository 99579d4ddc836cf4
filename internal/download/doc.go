// Package download is the transfer engine: a bounded pool of workers
// pulling from the resolved-download set.
//
// Each transfer is staged in a ".part" file and renamed into place on
// success, so a crash mid-transfer never leaves a file that looks
// complete. Existing files with a plausible size are skipped, making
// repeated runs idempotent. Failures are isolated per item and retried
// with the shared backoff policy before being reported.
package download
