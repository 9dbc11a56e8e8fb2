package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const defaultLogMaxBytes = 10 << 20

// LogWriter is the writer used for application and database logs.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the path to the service log file under LOG_DIR.
func LogFilePath() string {
	return filepath.Join(envOr("LOG_DIR", "logs"), "peer-review-api.log")
}

func logMaxBytes() int64 {
	n, err := strconv.ParseInt(envOr("LOG_MAX_BYTES", ""), 10, 64)
	if err != nil || n <= 0 {
		return defaultLogMaxBytes
	}
	return n
}

// rotateLog moves path to path.1 when it has grown past maxBytes. Only one
// previous file is kept; the /logs route serves the current one.
func rotateLog(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxBytes {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate %s: %w", path, err)
	}
	return nil
}

// InitLogging tees the standard logger to stdout and the log file, rotating
// the file at start-up once it exceeds LOG_MAX_BYTES. When the file cannot be
// opened logging continues on stdout only.
func InitLogging() (*os.File, io.Writer) {
	path := LogFilePath()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create logs directory: %v", err)
	}
	if err := rotateLog(path, logMaxBytes()); err != nil {
		log.Printf("Warning: %v", err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: Failed to open log file: %v", err)
		LogWriter = os.Stdout
		log.SetOutput(LogWriter)
		return nil, LogWriter
	}

	LogWriter = io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(LogWriter)
	return logFile, LogWriter
}
