package logger_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rallyrank/rallyrank/pkg/logger"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Get returns a usable logger", func() {
			log := logger.Get()
			So(log, ShouldNotBeNil)
			So(func() {
				log.Info(context.Background(), "message",
					logger.String("key", "value"),
					logger.Int("count", 3),
					logger.Float64("rating", 1500.0),
					logger.Bool("ok", true))
			}, ShouldNotPanic)
		})

		Convey("Named loggers group their fields", func() {
			So(func() {
				logger.Named("engine").Warn(context.Background(), "warned")
			}, ShouldNotPanic)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the level parser", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Known levels parse", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", "", "ERROR"} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Unknown levels are rejected", func() {
			So(logger.SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}
