package dirblockcheck

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	globalVerboseLevel int
	debugFlags         map[string]bool

	logMu     sync.RWMutex
	logOutput io.Writer = os.Stderr
	logger              = newConsoleLogger(os.Stderr, 0)
)

func newConsoleLogger(w io.Writer, level int) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	return zerolog.New(cw).Level(zerologLevel(level))
}

// zerologLevel maps a verbose level onto a zerolog level
func zerologLevel(level int) zerolog.Level {
	switch {
	case level >= 3:
		return zerolog.TraceLevel
	case level >= 1:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetVerboseLevel sets the global verbose level
func SetVerboseLevel(level int) {
	logMu.Lock()
	defer logMu.Unlock()
	globalVerboseLevel = level
	logger = newConsoleLogger(logOutput, level)
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	logMu.RLock()
	defer logMu.RUnlock()
	return globalVerboseLevel
}

// SetLogOutput redirects diagnostic logging, mostly for tests
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logOutput = w
	logger = newConsoleLogger(w, globalVerboseLevel)
}

// Logger returns the diagnostic logger
func Logger() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if GetVerboseLevel() < 3 {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	Logger().Trace().Str("func", funcName).Msg("enter")
	return func() {
		Logger().Trace().Str("func", funcName).Msg("exit")
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if GetVerboseLevel() < level {
		return
	}
	msg := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	l := Logger()
	if level >= 3 {
		l.Trace().Int("v", level).Msg(msg)
		return
	}
	l.Debug().Int("v", level).Msg(msg)
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("scan,diff") and key:value format ("scan:true,diff:false")
func SetDebugFlags(flagsStr string) {
	flags := make(map[string]bool)
	for _, flag := range strings.Split(flagsStr, ",") {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "false", "0", "no", "off":
				flagValue = false
			}
		}

		flags[flagName] = flagValue
	}

	logMu.Lock()
	debugFlags = flags
	logMu.Unlock()
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	logMu.RLock()
	defer logMu.RUnlock()
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
