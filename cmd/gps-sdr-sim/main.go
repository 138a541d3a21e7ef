// Command gps-sdr-sim synthesises GPS L1 C/A baseband I/Q samples from
// broadcast ephemerides and a receiver trajectory, writing them to a
// binary file for SDR playback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bramburn/gpssimgo/pkg/gpssim"
	"github.com/bramburn/gpssimgo/pkg/gpssim/ephemeris"
	"github.com/bramburn/gpssimgo/pkg/gpssim/geodesy"
	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
	"github.com/bramburn/gpssimgo/pkg/gpssim/iono"
	"github.com/bramburn/gpssimgo/pkg/gpssim/motion"
	"github.com/bramburn/gpssimgo/pkg/gpssim/rinex"
	"github.com/bramburn/gpssimgo/pkg/gpssim/sim"
	"github.com/bramburn/gpssimgo/pkg/gpssim/stream"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// normalizeArgs rewrites the bare form of -p (optional gain argument)
// into the -p=N form the flag package accepts
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "-p" {
			if i+1 < len(args) {
				if _, err := strconv.Atoi(args[i+1]); err == nil {
					out = append(out, "-p="+args[i+1])
					i++
					continue
				}
			}
			out = append(out, "-p=-1")
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// parseTriple splits a comma-separated coordinate triple
func parseTriple(s string) ([3]float64, error) {
	var v [3]float64
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return v, fmt.Errorf("expected three comma-separated values, got %q", s)
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return v, fmt.Errorf("value %q: %w", f, err)
		}
		v[i] = x
	}
	return v, nil
}

func run(args []string) int {
	fset := flag.NewFlagSet("gps-sdr-sim", flag.ContinueOnError)
	navFile := fset.String("e", "", "RINEX navigation file (required)")
	ecefFile := fset.String("u", "", "ECEF motion file x,y,z per 100 ms")
	llhFile := fset.String("x", "", "LLH motion file lat,lon,height per 100 ms")
	nmeaFile := fset.String("g", "", "NMEA GGA stream, one fix per second")
	staticEcef := fset.String("c", "", "static ECEF position X,Y,Z (m)")
	staticLLH := fset.String("l", "", "static position LAT,LON,H (deg,deg,m)")
	startStr := fset.String("t", "", "scenario start YYYY/MM/DD,hh:mm:ss or 'now' (default: ephemeris epoch)")
	override := fset.Bool("T", false, "override TOC/TOE to the scenario start")
	duration := fset.Float64("d", 300.0, "duration (s)")
	outFile := fset.String("o", "gpssim.bin", "output file")
	rate := fset.Float64("s", 2.6e6, "sampling frequency (Hz)")
	bits := fset.Int("b", 16, "I/Q bits per component (1, 8 or 16)")
	disableIono := fset.Bool("i", false, "disable ionospheric delay")
	pGain := fset.Int("p", -2, "disable path loss, optional fixed gain 0..127")
	leap := fset.String("L", "", "leap second override WEEK,DAY,SECONDS")
	verbose := fset.Bool("v", false, "verbose channel diagnostics")

	if err := fset.Parse(normalizeArgs(args)); err != nil {
		return 1
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	err := simulate(logger, options{
		navFile:     *navFile,
		ecefFile:    *ecefFile,
		llhFile:     *llhFile,
		nmeaFile:    *nmeaFile,
		staticEcef:  *staticEcef,
		staticLLH:   *staticLLH,
		startStr:    *startStr,
		override:    *override,
		duration:    *duration,
		outFile:     *outFile,
		rate:        *rate,
		bits:        *bits,
		disableIono: *disableIono,
		pGain:       *pGain,
		leap:        *leap,
	})
	if err != nil && gpssim.KindOf(err) != gpssim.KindCancelled {
		logger.Error(err)
	}
	return gpssim.ExitCode(err)
}

type options struct {
	navFile, ecefFile, llhFile, nmeaFile string
	staticEcef, staticLLH                string
	startStr                             string
	override                             bool
	duration                             float64
	outFile                              string
	rate                                 float64
	bits                                 int
	disableIono                          bool
	pGain                                int
	leap                                 string
}

// trajectory builds the receiver motion source from the exclusive
// position options
func (o *options) trajectory() (motion.Source, error) {
	selected := 0
	for _, s := range []string{o.ecefFile, o.llhFile, o.nmeaFile, o.staticEcef, o.staticLLH} {
		if s != "" {
			selected++
		}
	}
	if selected == 0 {
		return nil, gpssim.Errorf(gpssim.KindInput,
			"a position is required: one of -u, -x, -g, -c or -l")
	}
	if selected > 1 {
		return nil, gpssim.Errorf(gpssim.KindInput,
			"options -u, -x, -g, -c and -l are mutually exclusive")
	}

	switch {
	case o.ecefFile != "":
		p, err := motion.OpenFile(o.ecefFile, motion.ReadECEF)
		return p, gpssim.Wrap(gpssim.KindInput, err)
	case o.llhFile != "":
		p, err := motion.OpenFile(o.llhFile, motion.ReadLLH)
		return p, gpssim.Wrap(gpssim.KindInput, err)
	case o.nmeaFile != "":
		p, err := motion.OpenFile(o.nmeaFile, motion.ReadNMEA)
		return p, gpssim.Wrap(gpssim.KindInput, err)
	case o.staticEcef != "":
		v, err := parseTriple(o.staticEcef)
		if err != nil {
			return nil, gpssim.Wrap(gpssim.KindInput, err)
		}
		return motion.NewStaticECEF(geodesy.Vec3(v)), nil
	default:
		v, err := parseTriple(o.staticLLH)
		if err != nil {
			return nil, gpssim.Wrap(gpssim.KindInput, err)
		}
		return motion.NewStaticLLH(v[0], v[1], v[2]), nil
	}
}

func simulate(logger logrus.FieldLogger, o options) error {
	if o.navFile == "" {
		return gpssim.Errorf(gpssim.KindInput, "a RINEX navigation file is required (-e)")
	}

	nav, err := rinex.ParseFile(o.navFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return gpssim.Wrap(gpssim.KindIO, err)
		}
		return gpssim.Wrap(gpssim.KindInput, err)
	}
	logger.WithField("ephemerides", len(nav.Ephs)).Info("Navigation file loaded")

	if o.leap != "" {
		v, err := parseTriple(o.leap)
		if err != nil {
			return gpssim.Wrap(gpssim.KindInput, err)
		}
		if nav.Iono == nil {
			nav.Iono = &iono.Params{}
		}
		nav.Iono.WNlsf = int(v[0])
		nav.Iono.DN = int(v[1])
		nav.Iono.LeapSecs = int(v[2])
	}

	traj, err := o.trajectory()
	if err != nil {
		return err
	}

	cfg := sim.DefaultConfig()
	cfg.Duration = o.duration
	cfg.SampleRate = o.rate
	cfg.BitWidth = o.bits
	cfg.IonoEnabled = !o.disableIono
	cfg.OverrideEpochs = o.override
	cfg.PathLossEnabled = o.pGain == -2
	if o.pGain >= 0 {
		cfg.FixedGain = o.pGain
	}

	switch {
	case o.startStr != "":
		cfg.StartTime, err = gtime.ParseDateTime(o.startStr)
		if err != nil {
			return gpssim.Wrap(gpssim.KindInput, err)
		}
	default:
		// scenario starts at the epoch of the navigation data
		cfg.StartTime = nav.Ephs[0].Toc
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	sink, err := stream.NewFileSink(o.outFile)
	if err != nil {
		return gpssim.Wrap(gpssim.KindIO, err)
	}
	defer sink.Close()

	sm, err := sim.New(cfg, ephemeris.NewSet(nav.Ephs), nav.Iono, traj, sink, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sm.Run(ctx); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return gpssim.Wrap(gpssim.KindIO, err)
	}
	logger.WithField("output", o.outFile).Info("I/Q samples written")
	return nil
}

