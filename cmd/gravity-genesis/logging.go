package main

import (
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogging(ctx *cli.Context) error {
	log.SetDefault(log.NewLogger(newLogHandler(ctx.String(logFileFlag.Name), ctx.Bool(debugFlag.Name))))
	return nil
}

// newLogHandler logs to a rotating logfmt file when file is set, and to a
// terminal handler on stderr otherwise.
func newLogHandler(file string, debug bool) slog.Handler {
	level := log.LevelInfo
	if debug {
		level = log.LevelDebug
	}
	if file != "" {
		return log.LogfmtHandlerWithLevel(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
		}, level)
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return log.NewTerminalHandlerWithLevel(colorable.NewColorableStderr(), level, useColor)
}
