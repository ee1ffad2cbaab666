package input

import "log/slog"

// LoggingInput is the dry-run adapter: every synthetic event is logged and
// nothing touches the OS. The run and calibrate commands use it unless a
// platform adapter is wired in.
type LoggingInput struct {
	log *slog.Logger
}

// NewLoggingInput builds the dry-run adapter.
func NewLoggingInput(log *slog.Logger) *LoggingInput {
	return &LoggingInput{log: log}
}

func (l *LoggingInput) MoveMouse(x, y int) error {
	l.log.Info("input: move", "x", x, "y", y)
	return nil
}

func (l *LoggingInput) Click(x, y int, button Button) error {
	l.log.Info("input: click", "x", x, "y", y, "button", int(button))
	return nil
}

func (l *LoggingInput) Drag(x1, y1, x2, y2 int) error {
	l.log.Info("input: drag", "x1", x1, "y1", y1, "x2", x2, "y2", y2)
	return nil
}

func (l *LoggingInput) TypeText(s string) error {
	l.log.Info("input: type", "text", s)
	return nil
}
