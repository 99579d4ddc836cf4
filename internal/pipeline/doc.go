// Package pipeline sequences a full sync run: authenticate, enumerate
// the collection, resolve download links, transfer files and aggregate
// the per-item results into a summary.
//
// Only authentication and configuration failures abort a run; every
// item-scoped failure is retained in the summary with the item's
// identity and error so the user can re-run or investigate.
package pipeline
