package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"proxsense/ble"
	"proxsense/config"
	"proxsense/datatype"
	"proxsense/discovery"
	"proxsense/logger"
	"proxsense/models"
	"proxsense/payload"
	"proxsense/sensor"
	"proxsense/targets"
)

type runOptions struct {
	duration     time.Duration
	devices      bool
	send         string
	share        bool
	otlpEndpoint string
}

// Report is one periodic snapshot printed by run.
type Report struct {
	Targets []models.Target `json:"targets"`
	Devices []models.Device `json:"devices,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Advertise this device and report nearby targets",
		Long: `Advertise this device's sonar payload on the local network, follow peers
across identifier rotation and periodically print the deduplicated targets.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&opts.devices, "devices", false, "include the device registry in each report")
	cmd.Flags().StringVar(&opts.send, "send", "", "immediately send this device's payload to the target with this short name")
	cmd.Flags().BoolVar(&opts.share, "share", false, "relay the payloads of nearby targets in the advertisement")
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "export sensor metrics to this OTLP/gRPC collector")

	return cmd
}

func runRun(ctx context.Context, rootOpts *RootOptions, opts *runOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	cfg, err := loadConfig(rootOpts)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error())
		return WrapExitError(ExitCommandError, "load config", err)
	}

	logCfg := cfg.Log
	if rootOpts.Verbose {
		logCfg.Debug = true
	}
	if err := logger.Init(logCfg); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error())
		return WrapExitError(ExitCommandError, "init logger", err)
	}
	log := logger.WithComponent("cli")

	metricsCfg := cfg.Metrics
	if opts.otlpEndpoint != "" {
		metricsCfg.Endpoint = opts.otlpEndpoint
	}
	if _, err := logger.InitializeMetrics(ctx, metricsCfg); err == nil {
		defer func() {
			if err := logger.ShutdownMetrics(context.Background()); err != nil {
				log.Warn().Err(err).Msg("metrics shutdown failed")
			}
		}()
	} else if !errors.Is(err, logger.ErrMetricsDisabled) {
		log.Warn().Err(err).Msg("metrics export unavailable")
	}

	own := payload.NewSonarSupplier(cfg.SonarIdentifier).Payload(time.Now())
	tracker := targets.NewTracker(logger.GetLogger())
	sensors := sensor.NewArray(tracker)
	svc, err := discovery.Start(discoveryConfig(cfg), sensors, logger.GetLogger())
	if err != nil {
		_ = formatter.Error(ErrCodeDiscovery, err.Error())
		return WrapExitError(ExitCommandError, "start discovery", err)
	}
	defer svc.Stop()

	log.Info().
		Str("device_id", cfg.DeviceID).
		Int32("sonar_identifier", cfg.SonarIdentifier).
		Str("advertising", svc.Broadcaster.Identifier().String()).
		Msg("running")

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	ticker := time.NewTicker(cfg.Discovery.ReportInterval.Std())
	defer ticker.Stop()

	events := svc.Bridge.Events()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			logEvent(log, event)
		case <-ticker.C:
			if err := writeReport(formatter, tracker, svc.Bridge.Registry(), opts.devices); err != nil {
				return err
			}
			if opts.share {
				shareTargets(log, svc, tracker.Targets())
			}
			if opts.send != "" && sendTo(log, svc, tracker.Targets(), opts.send, own) {
				opts.send = ""
			}
		case <-ctx.Done():
			counts := sensors.Counts()
			log.Info().
				Int64("detects", counts.Detect).
				Int64("reads", counts.Read).
				Int64("shares", counts.Share).
				Int64("measures", counts.Measure).
				Int64("receives", counts.Receive).
				Msg("stopping")
			return writeReport(formatter, tracker, svc.Bridge.Registry(), opts.devices)
		}
	}
}

// sendTo delivers own to the target shown under shortName once it resolves.
func sendTo(log zerolog.Logger, svc *discovery.Service, list []targets.Snapshot, shortName string, own datatype.PayloadData) bool {
	for _, target := range list {
		if target.ShortName != shortName {
			continue
		}
		err := svc.ImmediateSend(datatype.Data(own), target.Identifier)
		log.Info().
			Str("to", shortName).
			Str("id", target.Identifier.String()).
			Bool("result", err == nil).
			Msg("immediate send")
		return err == nil
	}
	return false
}

func shareTargets(log zerolog.Logger, svc *discovery.Service, list []targets.Snapshot) {
	payloads := make([]datatype.PayloadData, 0, len(list))
	for _, target := range list {
		payloads = append(payloads, target.Payload)
	}
	if err := svc.Share(payloads); err != nil {
		log.Warn().Err(err).Msg("share failed")
	}
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.LoadFile(opts.ConfigPath)
	}
	cfg, _, err := config.LoadOrCreate()
	return cfg, err
}

func discoveryConfig(cfg *config.Config) discovery.Config {
	return discovery.Config{
		Service:        cfg.Discovery.Service,
		Domain:         cfg.Discovery.Domain,
		Port:           cfg.Discovery.Port,
		ScanInterval:   cfg.Discovery.ScanInterval.Std(),
		ScanTimeout:    cfg.Discovery.ScanTimeout.Std(),
		RotateInterval: cfg.Discovery.RotateInterval.Std(),
		PeerStaleAfter: cfg.Discovery.PeerStaleAfter.Std(),
		SelfDeviceID:   cfg.DeviceID,
		DeviceName:     cfg.DeviceName,
		Platform:       ble.ParsePlatform(cfg.Platform),
		TxPower:        datatype.TxPower(cfg.TxPower),
		Supplier:       payload.NewSonarSupplier(cfg.SonarIdentifier),
	}
}

func logEvent(log zerolog.Logger, event discovery.Event) {
	entry := log.Debug().Str("event", string(event.Type)).Str("id", event.Identifier.String())
	if event.Previous != "" {
		entry = entry.Str("previous", event.Previous.String())
	}
	entry.Msg("registry changed")
}

func writeReport(formatter *OutputFormatter, tracker *targets.Tracker, registry *ble.Registry, withDevices bool) error {
	report := Report{Targets: targetModels(tracker.Refresh())}
	if withDevices {
		report.Devices = deviceModels(registry.Devices())
	}
	return formatter.Success(report, func(w io.Writer) error {
		return writeReportText(w, report, withDevices)
	})
}

func writeReportText(w io.Writer, report Report, withDevices bool) error {
	if err := writeTargets(w, report.Targets); err != nil {
		return err
	}
	if withDevices {
		if err := writeDevices(w, report.Devices); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
