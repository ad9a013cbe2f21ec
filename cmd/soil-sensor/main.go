// Command soil-sensor samples a soil moisture probe, classifies the soil and
// drives a status LED and a watering pump.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/soil-sensor/internal/actuator"
	"github.com/sweeney/soil-sensor/internal/config"
	"github.com/sweeney/soil-sensor/internal/control"
	"github.com/sweeney/soil-sensor/internal/logic"
	"github.com/sweeney/soil-sensor/internal/mqtt"
	"github.com/sweeney/soil-sensor/internal/sensor"
)

type options struct {
	configPath   string
	printReading bool
	saveConfig   string

	cycles    int
	interval  time.Duration
	calibrate bool
	source    string
	seed      int64
	broker    string

	// set holds the names of flags given on the command line; only those
	// override the config file.
	set map[string]bool
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}

	fs := newFlagSet(o)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	return o, nil
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("soil-sensor", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "soil-sensor.yaml", "YAML config file (missing file means defaults)")
	fs.BoolVar(&o.printReading, "print-reading", false, "Print one averaged reading and exit")
	fs.StringVar(&o.saveConfig, "save-config", "", "Write the effective config to this file and exit")
	fs.IntVar(&o.cycles, "cycles", 0, fmt.Sprintf("Number of cycles, 0 = run until signalled (default from config, %d without a config file)", config.Default().Loop.Cycles))
	fs.DurationVar(&o.interval, "interval", 2*time.Second, "Delay between cycles")
	fs.BoolVar(&o.calibrate, "calibrate", false, "Log calibration guidance with every reading")
	fs.StringVar(&o.source, "source", config.SourceSimulated, `Sensor source ("simulated" or "serial")`)
	fs.Int64Var(&o.seed, "seed", 1, "Seed for the simulated probe")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker for the pump relay (empty to disable)")
	return fs
}

// apply copies explicitly given flags over the loaded config.
func (o *options) apply(cfg *config.Config) {
	if o.set["cycles"] {
		cfg.Loop.Cycles = o.cycles
	}
	if o.set["interval"] {
		cfg.Loop.Interval = o.interval
	}
	if o.set["calibrate"] {
		cfg.Loop.CalibrationMode = o.calibrate
	}
	if o.set["source"] {
		cfg.Sensor.Source = o.source
	}
	if o.set["seed"] {
		cfg.Sensor.Seed = o.seed
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	opts.apply(cfg)

	if err := run(cfg, opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, opts *options) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if opts.saveConfig != "" {
		if err := cfg.Save(opts.saveConfig); err != nil {
			return err
		}
		log.Printf("wrote config to %s", opts.saveConfig)
		return nil
	}

	source, closeSource, err := buildSource(cfg)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}

	if opts.printReading {
		defer closeSource()
		return printReading(os.Stdout, source, cfg)
	}

	sink, err := buildSink(cfg)
	if err != nil {
		closeSource()
		return fmt.Errorf("init actuators: %w", err)
	}
	shutdown := closeOnce(sink, closeSource)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go watchSignals(sigCh, shutdown, os.Exit)

	log.Printf("started: source=%s interval=%v cycles=%d samples=%d dry=%d wet=%d low=%d high=%d",
		cfg.Sensor.Source, cfg.Loop.Interval, cfg.Loop.Cycles, cfg.Loop.Samples,
		cfg.Calibration.DryReference, cfg.Calibration.WetReference, cfg.Thresholds.Low, cfg.Thresholds.High)

	sum, err := runLoop(cfg.Control(), source, sink, control.NewLogRecorder(nil), time.Sleep)
	if err != nil {
		shutdown()
		return err
	}
	logSummary(sum)

	return shutdown()
}

// runLoop builds the controller and runs it to completion.
func runLoop(cfg control.Config, source sensor.Source, sink actuator.Sink, rec control.Recorder, sleep func(time.Duration)) (control.Summary, error) {
	ctrl, err := control.New(cfg, source, sink, rec, sleep)
	if err != nil {
		return control.Summary{}, fmt.Errorf("init controller: %w", err)
	}
	return ctrl.Run(), nil
}

// buildSource returns the configured reading source and a func releasing it.
func buildSource(cfg *config.Config) (sensor.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Sensor.Source {
	case config.SourceSimulated:
		simCfg, err := cfg.Simulation()
		if err != nil {
			return nil, nil, err
		}
		sim := sensor.NewSimulated(simCfg)

		regimes, err := cfg.ScheduleRegimes()
		if err != nil {
			return nil, nil, err
		}
		if len(regimes) == 0 {
			return sim, noop, nil
		}
		return sensor.NewSchedule(sim, regimes, cfg.Sensor.ScheduleEvery), noop, nil

	case config.SourceSerial:
		line, err := sensor.OpenSerial(cfg.Sensor.SerialPort, cfg.Sensor.BaudRate, cfg.Sensor.ReadTimeout)
		if err != nil {
			return nil, nil, err
		}
		return line, line.Close, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown sensor source %q", logic.ErrInvalidConfiguration, cfg.Sensor.Source)
}

// buildSink fans commands out to every enabled actuator. With none enabled,
// decisions are only logged.
func buildSink(cfg *config.Config) (actuator.Sink, error) {
	var sinks []actuator.Sink

	if cfg.GPIO.Enabled {
		g, err := actuator.NewGPIOSink(cfg.GPIO.Chip, cfg.GPIO.IndicatorPin, cfg.GPIO.PumpPin)
		if err != nil {
			return nil, fmt.Errorf("gpio: %w", err)
		}
		sinks = append(sinks, g)
		log.Printf("gpio: %s indicator=%d pump=%d", cfg.GPIO.Chip, cfg.GPIO.IndicatorPin, cfg.GPIO.PumpPin)
	}

	if cfg.MQTT.Broker != "" {
		r, err := mqtt.NewRealRelay(cfg.Relay())
		if err != nil {
			if len(sinks) > 0 {
				actuator.Multi(sinks...).Close()
			}
			return nil, fmt.Errorf("mqtt relay: %w", err)
		}
		sinks = append(sinks, r)
		log.Printf("mqtt relay: broker=%s topic=%s", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	if len(sinks) == 0 {
		log.Printf("no actuators enabled; decisions are logged only")
	}
	return actuator.Multi(sinks...), nil
}

// printReading takes one averaged reading and prints the decision.
func printReading(w io.Writer, source sensor.Source, cfg *config.Config) error {
	raw, err := source.ReadAveraged(cfg.Loop.Samples)
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	d := logic.Decide(raw, cfg.LogicCalibration(), cfg.LogicThresholds())
	fmt.Fprintf(w, "Raw: %d, Moisture: %d%%, Status: %s, Pump: %s\n", d.Raw, d.Percent, d.Condition.Label(), d.Command.Pump)
	return nil
}

// closeOnce releases the sink (pump off) and the source exactly once, however
// many times the returned func is called.
func closeOnce(sink actuator.Sink, closeSource func() error) func() error {
	var once sync.Once
	var err error
	return func() error {
		once.Do(func() {
			err = errors.Join(sink.Close(), closeSource())
		})
		return err
	}
}

// watchSignals waits for a signal, switches the outputs off and exits.
func watchSignals(sig <-chan os.Signal, shutdown func() error, exit func(int)) {
	s, ok := <-sig
	if !ok {
		return
	}
	log.Printf("received %v, shutting down", s)
	if err := shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}
	exit(0)
}

func logSummary(sum control.Summary) {
	log.Printf("finished: cycles=%d commands=%d read_errors=%d dry=%d optimal=%d wet=%d",
		sum.Cycles, sum.Commands, sum.Errors,
		sum.ByCondition[logic.ConditionDry], sum.ByCondition[logic.ConditionOptimal], sum.ByCondition[logic.ConditionWet])
}
