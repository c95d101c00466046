package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/climeter/internal/analyzer"
	"github.com/olivier-w/climeter/internal/media"
	"github.com/sirupsen/logrus"
)

// meterSpec is one -meter flag: a label and its band boundaries in Hz.
type meterSpec struct {
	label      string
	boundaries []int
}

// meterList collects repeated -meter flags.
type meterList []meterSpec

func (l *meterList) String() string {
	parts := make([]string, len(*l))
	for i, m := range *l {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

func (l *meterList) Set(v string) error {
	m, err := parseMeter(v)
	if err != nil {
		return err
	}
	*l = append(*l, m)
	return nil
}

func (m meterSpec) String() string {
	bounds := make([]string, len(m.boundaries))
	for i, b := range m.boundaries {
		bounds[i] = strconv.Itoa(b)
	}
	return m.label + "=" + strings.Join(bounds, ",")
}

// parseMeter parses "label=f0,f1,...".
func parseMeter(v string) (meterSpec, error) {
	label, list, ok := strings.Cut(v, "=")
	label = strings.TrimSpace(label)
	if !ok || label == "" {
		return meterSpec{}, fmt.Errorf("meter %q: want label=f0,f1,...", v)
	}
	var bounds []int
	for _, f := range strings.Split(list, ",") {
		hz, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return meterSpec{}, fmt.Errorf("meter %q: bad frequency %q", v, f)
		}
		bounds = append(bounds, hz)
	}
	return meterSpec{label: label, boundaries: bounds}, nil
}

var defaultMeters = meterList{
	{label: "Bass", boundaries: []int{0, 500}},
	{label: "Other+", boundaries: []int{1000, 15000}},
}

type cliConfig struct {
	source      string
	fftSize     int
	sampleRate  int
	decay       float64
	sensitivity float64
	meters      meterList
	interval    time.Duration
	width       int
	fragment    int
	play        bool
	logPath     string
	logJSON     bool
	logLevel    string
}

// analyzerConfigs builds one analyzer configuration per meter.
func (c cliConfig) analyzerConfigs() []analyzer.Config {
	cfgs := make([]analyzer.Config, len(c.meters))
	for i, m := range c.meters {
		cfgs[i] = analyzer.Config{
			FFTSize:     c.fftSize,
			SampleRate:  c.sampleRate,
			DecayRate:   c.decay,
			Sensitivity: c.sensitivity,
			Boundaries:  append([]int(nil), m.boundaries...),
			Source:      c.source,
			Label:       m.label,
		}
	}
	return cfgs
}

// newFlagSet binds every flag to c.
func newFlagSet(c *cliConfig) *flag.FlagSet {
	def := analyzer.DefaultConfig()
	fs := flag.NewFlagSet("climeter", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&c.source, "source", "monitor:", "audio source: monitor:<sink>, file:<path>, tone:<hz>, portaudio, or a file path")
	fs.IntVar(&c.fftSize, "n", def.FFTSize, "transform size")
	fs.IntVar(&c.sampleRate, "rate", def.SampleRate, "capture sample rate in Hz")
	fs.Float64Var(&c.decay, "decay", def.DecayRate, "per-chunk release factor")
	fs.Float64Var(&c.sensitivity, "sensitivity", def.Sensitivity, "level gain")
	fs.Var(&c.meters, "meter", "meter as label=f0,f1,... (repeatable)")
	fs.DurationVar(&c.interval, "interval", time.Millisecond, "display poll interval")
	fs.IntVar(&c.width, "width", 32, "bar width in cells")
	fs.IntVar(&c.fragment, "fragment", 1, "capture fragment length in ms")
	fs.BoolVar(&c.play, "play", false, "play file sources while analysing")
	fs.StringVar(&c.logPath, "log", "", "write logs to this file")
	fs.BoolVar(&c.logJSON, "log-json", false, "log as JSON")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level")
	return fs
}

func parseArgs(args []string) (cliConfig, error) {
	var c cliConfig
	fs := newFlagSet(&c)

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	sourceSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "source" {
			sourceSet = true
		}
	})
	switch fs.NArg() {
	case 0:
	case 1:
		if sourceSet {
			return cliConfig{}, fmt.Errorf("both -source and %q given", fs.Arg(0))
		}
		c.source = fs.Arg(0)
	default:
		return cliConfig{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if len(c.meters) == 0 {
		for _, m := range defaultMeters {
			c.meters = append(c.meters, meterSpec{label: m.label, boundaries: append([]int(nil), m.boundaries...)})
		}
	}
	if c.interval < time.Millisecond {
		c.interval = time.Millisecond
	}
	if c.width <= 0 {
		return cliConfig{}, fmt.Errorf("bar width must be positive, got %d", c.width)
	}
	return c, nil
}

// newLogger returns the process logger and a close function. The terminal
// belongs to the display, so without -log everything is discarded.
func newLogger(c cliConfig) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return nil, nil, err
	}
	log.SetLevel(level)
	if c.logJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if c.logPath == "" {
		return log, func() {}, nil
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log: %w", err)
	}
	log.SetOutput(f)
	return log, func() { f.Close() }, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: climeter [flags] [source]

Sources:
  monitor:<sink>   monitor of a PulseAudio sink (default: the default sink)
  file:<path>      audio file (%s), also accepted as a bare path
  tone:<hz>        generated sine wave
  portaudio        default input device

Flags:
`, media.SupportedExtsList())
	var c cliConfig
	fs := newFlagSet(&c)
	fs.SetOutput(os.Stderr)
	fs.PrintDefaults()
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		usage()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		usage()
		os.Exit(2)
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	holder := &sessionHolder{}
	program := tea.NewProgram(newStartupModel(cfg, func() (*session, error) {
		s, err := openSession(cfg, log)
		if err != nil {
			return nil, err
		}
		if !holder.set(s) {
			return nil, errors.Join(errQuitDuringStartup, s.shutdown())
		}
		return s, nil
	}), tea.WithAltScreen())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	final, runErr := program.Run()
	shutdownErr := holder.shutdown()
	if shutdownErr != nil {
		log.WithError(shutdownErr).Error("shutdown failed")
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
	if sm, ok := final.(startupModel); ok && sm.err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", sm.err)
		os.Exit(1)
	}
	if shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", shutdownErr)
		os.Exit(1)
	}
}
