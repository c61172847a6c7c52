package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of file appenders.
const (
	fileMaxSizeMB  = 64
	fileMaxBackups = 3
)

// FileAppender writes console formatted lines to a file that is rotated by size. Rotated files
// are gzipped.
type FileAppender struct {
	*ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender returns an appender writing to path. The file is created on first write.
func NewFileAppender(path string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the current log file.
func (app *FileAppender) Close() error {
	return app.file.Close()
}
