package logger

import (
	"strings"

	"github.com/nulzo/model-control-plane/internal/cli"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// coloredConsoleEncoder wraps zap's console encoder to syntax-highlight the
// trailing JSON field blob. Registered under "colored-console" in Initialize.
type coloredConsoleEncoder struct {
	zapcore.Encoder
}

func NewColoredConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	// the standard console encoder does the heavy lifting (time, level, caller)
	return &coloredConsoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
	}
}

func (c *coloredConsoleEncoder) Clone() zapcore.Encoder {
	return &coloredConsoleEncoder{
		Encoder: c.Encoder.Clone(),
	}
}

func (c *coloredConsoleEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := c.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}

	logLine := buf.String()

	// The console encoder separates the metadata from the structured fields
	// with a tab: "TIMESTAMP INFO MSG\t{json...}". Everything after "\t{" is
	// treated as the JSON blob.
	splitIdx := strings.Index(logLine, "\t{")

	if splitIdx != -1 {
		metaPart := logLine[:splitIdx+1] // include the tab
		jsonPart := logLine[splitIdx+1:]

		prettyJSON := cli.HighlightJSON(jsonPart)

		newBuf := buffer.NewPool().Get()
		newBuf.AppendString(metaPart)
		newBuf.AppendString(prettyJSON)

		buf.Free()

		return newBuf, nil
	}

	// no structured fields on this line
	return buf, nil
}
