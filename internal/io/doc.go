// Package ioutils provides small filesystem helpers and cover art
// image processing (resize, JPEG conversion) used when saving artwork
// alongside downloads.
package ioutils
