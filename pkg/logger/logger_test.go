package logger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(logger.InitWithWriter(&buf), ShouldBeNil)
		log := logger.Get()
		ctx := context.Background()

		Convey("When logging at info level", func() {
			log.Info(ctx, "ledger updated", logger.String("ledger", "l1"), logger.Int64("points", 42))

			Convey("Then the message and fields appear", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "ledger updated")
				So(out, ShouldContainSubstring, "ledger=l1")
				So(out, ShouldContainSubstring, "points=42")
			})
		})

		Convey("When logging below the configured level", func() {
			log.Debug(ctx, "invisible")
			So(buf.String(), ShouldBeEmpty)
		})

		Convey("When the level is lowered to debug", func() {
			So(logger.SetLevelString("debug"), ShouldBeNil)
			log.Debug(ctx, "now visible")
			So(buf.String(), ShouldContainSubstring, "now visible")
		})

		Convey("When using a named logger", func() {
			logger.Named("sweeper").Info(ctx, "done", logger.Int("batches", 3))
			So(buf.String(), ShouldContainSubstring, "sweeper.batches=3")
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(logger.SetLevelString(""), ShouldBeNil)
		So(logger.SetLevelString("WARN"), ShouldBeNil)
		So(logger.SetLevelString(" error "), ShouldBeNil)

		Convey("Unknown levels are rejected", func() {
			So(logger.SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}
