// internal/utils/date.go
package utils

import (
	"time"
)

const FileTimestampLayout = "20060102_150405"

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// FileTimestamp formats t for use in generated file names.
func FileTimestamp(t time.Time) string {
	return t.Format(FileTimestampLayout)
}
