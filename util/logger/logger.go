package logger

import (
	"os"

	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var L = &logger.Logger{
	Out:   os.Stderr,
	Level: logger.InfoLevel,
	Formatter: &prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp: true,
		ForceFormatting: true,
	},
}

// SetLevel parses the given level name and applies it to L.
// Unknown names leave the level unchanged.
func SetLevel(level string) {
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return
	}
	L.SetLevel(lvl)
}
