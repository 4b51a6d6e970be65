// Command depthpipe-inspect exercises the processor graph end-to-end
// against a synthetic device: it enables one stream named on the command
// line and logs every StreamData the pipeline produces for it.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nf0007217/depthpipe/pkg/depthpipe"
	"github.com/nf0007217/depthpipe/pkg/devicesim"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "depthpipe-inspect:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := depthpipe.NewConfig("depthpipe-inspect")
	cfg.F.String("stream", "points", "stream to enable and inspect")
	cfg.F.Duration("for", 2*time.Second, "how long to watch the stream")
	if err := cfg.Parse(args); err != nil {
		return err
	}

	log := zerolog.New(zerolog.NewConsoleWriter()).
		Level(cfg.LogLevel()).
		With().Timestamp().Logger()

	stream, ok := parseStream(cfg.K.String("stream"))
	if !ok {
		return fmt.Errorf("unknown stream %q", cfg.K.String("stream"))
	}

	dev := devicesim.NewDevice(640, 480, 33*time.Millisecond,
		depthpipe.StreamLeft, depthpipe.StreamRight)
	cal := devicesim.NewCalibration(640, 480, 0.12)

	pipe := depthpipe.NewPipeline(dev, cal, cfg.Model(), log)

	done := make(chan struct{})
	pipe.SetStreamCallback(stream, func(sd depthpipe.StreamData) {
		log.Info().
			Stringer("stream", stream).
			Uint16("frame_id", sd.FrameID).
			Msg("received frame")
	})

	if err := pipe.EnableStream(stream); err != nil {
		return err
	}
	if err := pipe.StartVideoStreaming(); err != nil {
		return err
	}

	timeout, _ := cfg.F.GetDuration("for")
	select {
	case <-done:
	case <-time.After(timeout):
	}

	return pipe.StopVideoStreaming()
}

func parseStream(name string) (depthpipe.Stream, bool) {
	switch name {
	case "left":
		return depthpipe.StreamLeft, true
	case "right":
		return depthpipe.StreamRight, true
	case "left_rectified":
		return depthpipe.StreamLeftRectified, true
	case "right_rectified":
		return depthpipe.StreamRightRectified, true
	case "disparity":
		return depthpipe.StreamDisparity, true
	case "disparity_normalized":
		return depthpipe.StreamDisparityNormalized, true
	case "points":
		return depthpipe.StreamPoints, true
	case "depth":
		return depthpipe.StreamDepth, true
	default:
		return 0, false
	}
}
