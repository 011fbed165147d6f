package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/runtime"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/hwcodec/avconv"
	"github.com/xaionaro-go/hwcodec/codec"
	hwlogger "github.com/xaionaro-go/hwcodec/logger"
	"github.com/xaionaro-go/hwcodec/types"
	"github.com/xaionaro-go/observability"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	decoderMode := types.ModeSoftware
	pflag.Var(&decoderMode, "decoder", "decoder backend: sw|vaapi|qsv")
	encoderMode := types.ModeSoftware
	pflag.Var(&encoderMode, "encoder", "encoder backend: sw|vaapi|qsv")
	inputCodecName := pflag.String("input-codec", "mpeg4", "codec of the synthetic source stream")
	outputCodecName := pflag.String("output-codec", "mpeg4", "codec to transcode into")
	width := pflag.Int("width", 320, "picture width")
	height := pflag.Int("height", 240, "picture height")
	frameRate := types.Rational{Num: 25, Den: 1}
	pflag.Var(&frameRate, "fps", "frame rate, e.g. 30, 30000/1001 or ~29.97")
	frameCount := pflag.Int("frames", 100, "amount of pictures per channel")
	channels := pflag.Int("channels", 1, "amount of channels transcoded in parallel")
	deviceName := pflag.String("device", "", "hardware device, e.g. /dev/dri/renderD128")
	noChaining := pflag.Bool("no-chaining", false, "pass pictures through host memory even if both backends share a device type")
	listDevices := pflag.Bool("list-devices", false, "print the hardware device types a device can be opened for and exit")
	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	runtime.DefaultCallerPCFilter = observability.CallerPCFilter(runtime.DefaultCallerPCFilter)
	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)
	hwlogger.SetupAstiavLogging(ctx)

	if *listDevices {
		fmt.Println(avconv.HardwareDeviceTypeNames(avconv.AvailableHardwareDeviceTypes(ctx)))
		return
	}

	inputCodec, err := codecIDByName(*inputCodecName)
	if err != nil {
		l.Fatal(err)
	}
	outputCodec, err := codecIDByName(*outputCodecName)
	if err != nil {
		l.Fatal(err)
	}

	var opts []codec.Option
	if *deviceName != "" {
		opts = append(opts, codec.OptionHardwareDeviceName(*deviceName))
	}

	p := prober{
		Config: probeConfig{
			DecoderMode:     decoderMode,
			EncoderMode:     encoderMode,
			InputCodec:      inputCodec,
			OutputCodec:     outputCodec,
			Width:           *width,
			Height:          *height,
			FrameRate:       frameRate,
			FrameCount:      *frameCount,
			DisableChaining: *noChaining,
			Options:         opts,
		},
	}

	startTS := time.Now()
	var wg sync.WaitGroup
	for chn := 0; chn < *channels; chn++ {
		chn := types.Channel(chn)
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			ctx = belt.WithField(ctx, "chn", chn)
			if err := p.probeChannel(ctx, chn); err != nil {
				logger.Errorf(ctx, "channel %s failed: %v", chn, err)
				p.addFailure()
			}
		})
	}
	wg.Wait()

	total := p.Totals()
	fmt.Printf(
		"%s -> %s: channels:%d failed:%d chained:%d pictures:%d packets:%d output:%s source:%s elapsed:%s\n",
		decoderMode, encoderMode, *channels, total.FailedChannels, total.ChainedChannels,
		total.DecodedPictures, total.EncodedPackets,
		humanize.Bytes(total.EncodedBytes), humanize.Bytes(total.SourceBytes),
		time.Since(startTS).Round(time.Millisecond),
	)
	if total.FailedChannels > 0 {
		os.Exit(1)
	}
}

func codecIDByName(name string) (astiav.CodecID, error) {
	if c := astiav.FindDecoderByName(name); c != nil {
		return c.ID(), nil
	}
	if c := astiav.FindEncoderByName(name); c != nil {
		return c.ID(), nil
	}
	return astiav.CodecIDNone, fmt.Errorf("unknown codec '%s'", name)
}
