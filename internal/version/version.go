// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/puppyradar/internal/version.Version=v1.2.0
package version

import "go.uber.org/zap/zapcore"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build describes the running binary. It is reported by /health and logged at startup.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current returns the build metadata of the running binary.
func Current() Build {
	return Build{Version: Version, Commit: Commit, Date: Date}
}

// MarshalLogObject lets Build be logged with zap.Object.
func (b Build) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("version", b.Version)
	enc.AddString("commit", b.Commit)
	enc.AddString("date", b.Date)
	return nil
}
