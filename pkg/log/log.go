/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type LogLevel int

const (
	LogPrefix     = "[go-vbus] "
	ErrorPrefix   = "[error] "
	WarningPrefix = "[warn] "
	InfoPrefix    = "[info] "
	DebugPrefix   = "[debug] "
	HelpLevels    = "Must be one of: error, warning, info, debug."
)

const (
	ErrorLevel LogLevel = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

// ErrWrongLevel is returned when a level name is not one of HelpLevels
type ErrWrongLevel struct {
	Level string
}

func (e ErrWrongLevel) Error() string {
	return fmt.Sprintf("Wrong log level %q. %s", e.Level, HelpLevels)
}

type Logger struct {
	level LogLevel
	*log.Logger
}

var logger = &Logger{
	level:  InfoLevel,
	Logger: log.New(os.Stderr, LogPrefix, log.LstdFlags),
}

// ParseLevel maps a level name to a LogLevel
func ParseLevel(strLevel string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(strLevel)) {
	case "error":
		return ErrorLevel, nil
	case "warning", "warn":
		return WarningLevel, nil
	case "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}
	return InfoLevel, ErrWrongLevel{Level: strLevel}
}

func SetLevel(strLevel string) error {
	level, err := ParseLevel(strLevel)
	if err != nil {
		return err
	}
	logger.level = level
	return nil
}

// Init redirects the logger and sets its level. An invalid level keeps
// the current one and is reported as a warning.
func Init(out io.Writer, strLevel string) {
	logger.SetOutput(out)
	if err := SetLevel(strLevel); err != nil {
		Warning("%s", err)
	}
}

// Enabled reports whether messages of the given level are printed
func Enabled(level LogLevel) bool {
	return logger.level >= level
}

func Error(format string, v ...interface{}) {
	if logger.level >= ErrorLevel {
		logger.Println(fmt.Sprintf(ErrorPrefix+format, v...))
	}
}

func Warning(format string, v ...interface{}) {
	if logger.level >= WarningLevel {
		logger.Println(fmt.Sprintf(WarningPrefix+format, v...))
	}
}

func Info(format string, v ...interface{}) {
	if logger.level >= InfoLevel {
		logger.Println(fmt.Sprintf(InfoPrefix+format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	if logger.level >= DebugLevel {
		logger.Println(fmt.Sprintf(DebugPrefix+format, v...))
	}
}

// Writer returns the destination of the logger, e.g. for access logs
func Writer() io.Writer {
	return logger.Writer()
}
