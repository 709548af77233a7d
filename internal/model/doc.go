// Package model defines the value types shared across the archiver:
// the per-day traffic record, the remote row shape, and the startup
// configuration.
package model
