package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// various formatters
	_ "github.com/netsampler/intflow/format/json"
	_ "github.com/netsampler/intflow/format/line"
	_ "github.com/netsampler/intflow/format/text"

	// various transports
	_ "github.com/netsampler/intflow/transport/file"
	_ "github.com/netsampler/intflow/transport/influxdb"
	_ "github.com/netsampler/intflow/transport/kafka"

	"github.com/netsampler/intflow/pkg/intflow/app"
	"github.com/netsampler/intflow/pkg/intflow/config"
	"github.com/netsampler/intflow/pkg/intflow/logging"
	"github.com/netsampler/intflow/pkg/intflow/synth"

	log "github.com/sirupsen/logrus"
)

var (
	version    = ""
	buildinfos = ""
	AppVersion = "intflow " + version + " " + buildinfos

	Version = flag.Bool("v", false, "Print version")

	SynthTarget   = flag.String("synth", "", "Send synthetic reports to this host:port instead of collecting")
	SynthCount    = flag.Int("synth.count", 0, "Synthetic reports to send (0 for unlimited)")
	SynthInterval = flag.Duration("synth.interval", synth.DefaultConfig.Interval, "Interval between synthetic reports")
	SynthHops     = flag.Int("synth.hops", synth.DefaultConfig.Hops, "Hops in synthetic reports")
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *Version {
		fmt.Println(AppVersion)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *SynthTarget != "" {
		logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFmt)
		if err != nil {
			log.Fatal(err)
		}
		synthCfg := synth.DefaultConfig
		synthCfg.Target = *SynthTarget
		synthCfg.Count = *SynthCount
		synthCfg.Interval = *SynthInterval
		synthCfg.Hops = *SynthHops
		synthCfg.DSCP = uint8(cfg.DSCP)
		if err := synth.Run(ctx, &synthCfg, logger); err != nil {
			logger.WithError(err).Fatal("error sending synthetic reports")
		}
		return
	}

	a, err := app.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("error starting intflow")
	}
	if err := a.Run(ctx); err != nil {
		log.WithError(err).Fatal("intflow stopped")
	}
}
