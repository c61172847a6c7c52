package logging

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// tbAppender sends each entry to the test that owns the logger, so output from parallel tests
// stays with the test that produced it.
type tbAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that writes through tb.Log.
func NewTestAppender(tb testing.TB) Appender {
	return &tbAppender{tb}
}

// Write renders the entry as a tab separated line with fields as sorted key=value pairs.
func (app *tbAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	app.tb.Helper()
	line := fmt.Sprintf("%s\t%-5s\t%s\t%s",
		entry.Time.Format(DefaultTimeFormatStr),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
		entry.Message)
	if len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(enc)
		}
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, enc.Fields[k]))
		}
		line += "\t" + strings.Join(pairs, " ")
	}
	app.tb.Log(line)
	return nil
}

func (app *tbAppender) Sync() error {
	return nil
}
