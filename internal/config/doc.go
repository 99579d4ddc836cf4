// Package config manages application settings for bcsync.
//
// Settings are stored as a JSON file. Loading a missing file yields
// defaults, so a first run works without any configuration beyond the
// cookie export and username:
//
//	settings, err := config.Load("~/.config/bcsync/settings.json")
//	settings.Username = "fan-name"
//	err = settings.Validate()
//
// The retry, pause and format accessors convert the raw JSON fields
// into the types the pipeline consumes, keeping the stored form plain.
package config
