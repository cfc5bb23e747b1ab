// Package logger is a small leveled wrapper over the standard logger used
// at module boundaries.
package logger

import (
	"log"
	"os"
)

var debugEnabled = os.Getenv("ODH_DEBUG") != ""

// Info logs informational messages.
func Info(format string, args ...interface{}) {
	log.Printf("INFO: "+format, args...)
}

// Warn logs warning messages.
func Warn(format string, args ...interface{}) {
	log.Printf("WARN: "+format, args...)
}

// Error logs error messages.
func Error(format string, args ...interface{}) {
	log.Printf("ERROR: "+format, args...)
}

// Debug logs debug messages when ODH_DEBUG is set.
func Debug(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}
