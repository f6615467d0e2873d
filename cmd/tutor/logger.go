package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// zerologAdapter maps the library's key-value logger onto zerolog.
type zerologAdapter struct {
	log zerolog.Logger
}

func newLogger(level string) *zerologAdapter {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}
	return &zerologAdapter{
		log: zerolog.New(output).Level(lvl).With().Timestamp().Logger(),
	}
}

func (z *zerologAdapter) Debug(msg string, args ...interface{}) {
	z.event(z.log.Debug(), args).Msg(msg)
}

func (z *zerologAdapter) Info(msg string, args ...interface{}) {
	z.event(z.log.Info(), args).Msg(msg)
}

func (z *zerologAdapter) Warn(msg string, args ...interface{}) {
	z.event(z.log.Warn(), args).Msg(msg)
}

func (z *zerologAdapter) Error(msg string, args ...interface{}) {
	z.event(z.log.Error(), args).Msg(msg)
}

// event attaches alternating key-value args. A trailing key without a value
// is logged as-is under "extra".
func (z *zerologAdapter) event(ev *zerolog.Event, args []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("extra", args[len(args)-1])
	}
	return ev
}
