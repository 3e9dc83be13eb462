package logging

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers logging flags and exposes them to viper under the
// keys Init reads.
func BindFlags(fs *pflag.FlagSet) {
	fs.Bool("debug", false, "enable debug logging")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	if err := viper.BindPFlags(fs); err != nil {
		logrus.Fatalf("binding flags: %v", err)
	}
}

func Init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:            true,
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02 15:04:05",
		DisableLevelTruncation: false,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := filepath.Base(f.File)
			return "", fmt.Sprintf(" %s:%d", filename, f.Line)
		},
	})
	logrus.SetReportCaller(true)

	switch {
	case viper.GetBool("debug"):
		logrus.SetLevel(logrus.DebugLevel)
	case viper.GetString("log-level") != "":
		level, err := logrus.ParseLevel(viper.GetString("log-level"))
		if err != nil {
			logrus.Fatalf("parsing log level: %v", err)
		}
		logrus.SetLevel(level)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// Component returns a logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
