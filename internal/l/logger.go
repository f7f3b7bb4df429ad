package l

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LineFormatter renders entries as `<timestamp> [<LEVEL>] <message> k=v...`,
// the format of the append-only medic log
type LineFormatter struct {
	// TimestampFormat defaults to time.RFC3339
	TimestampFormat string
}

// Format renders a single log entry
func (f *LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = time.RFC3339
	}

	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString(entry.Time.Format(tsFormat))
	b.WriteString(" [")
	b.WriteString(strings.ToUpper(entry.Level.String()))
	b.WriteString("] ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		writeValue(b, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeValue(b *bytes.Buffer, value interface{}) {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	case error:
		str = v.Error()
	case time.Time:
		str = v.Format(time.RFC3339)
	default:
		str = fmt.Sprint(v)
	}
	if str == "" || strings.ContainsAny(str, " \t\n\"=") {
		str = fmt.Sprintf("%q", str)
	}
	b.WriteString(str)
}

// Settings holds the logging configuration
type Settings struct {
	// Level is a logrus level name; defaults to info
	Level string
	// File is the path of the append-only log file; when empty only Output is
	// used
	File string
	// Output defaults to os.Stderr
	Output io.Writer
}

// New builds the medic logger. The returned closer releases the log file and
// must be called on shutdown.
func New(settings Settings) (*logrus.Logger, io.Closer, error) {
	level := logrus.InfoLevel
	if settings.Level != "" {
		var err error
		level, err = logrus.ParseLevel(settings.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	out := settings.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if settings.File != "" {
		file, err := os.OpenFile(settings.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(level)
	log.SetFormatter(&LineFormatter{})
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
