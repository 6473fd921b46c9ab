package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/psulink/internal/config"
	"github.com/muurk/psulink/internal/dp100"
	"github.com/muurk/psulink/internal/dps150"
	"github.com/muurk/psulink/internal/ui"
)

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (default: poll_interval_ms from the config file)")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of output voltage, current and power",
	Long: `Poll the supply on a fixed interval and show the readings full screen.

Keys: p pauses, r polls immediately, ? shows all keys, q quits.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func pollInterval() time.Duration {
	if watchInterval > 0 {
		return watchInterval
	}
	if registry, err := config.LoadRegistry(); err == nil && registry.Preferences != nil {
		return registry.Preferences.Poll()
	}
	return time.Second
}

func runWatch(cmd *cobra.Command, args []string) error {
	t, err := resolveTarget()
	if err != nil {
		return err
	}
	header := ui.NewHeader("Live readings", "psuctl watch", t.params())
	interval := pollInterval()

	if t.Profile.Protocol == config.ProtocolDP100 {
		return withDP100(t, func(s *dp100.Session) error {
			return ui.RunWatch(ui.NewWatchModel(header, dp100Sampler(s), interval))
		})
	}
	return withDPS150(t, func(s *dps150.Session) error {
		return ui.RunWatch(ui.NewWatchModel(header, dps150Sampler(s), interval))
	})
}

func dps150Sampler(s *dps150.Session) ui.SampleFunc {
	return func() (ui.Sample, error) {
		if _, err := s.Poll(); err != nil {
			return ui.Sample{}, err
		}
		state := s.Snapshot()
		if state.Frames == 0 {
			return ui.Sample{}, fmt.Errorf("no answer to GET ALL")
		}
		return dps150Sample(&state), nil
	}
}

func dps150Sample(s *dps150.State) ui.Sample {
	mode := "CC"
	if s.CV {
		mode = "CV"
	}
	maxV := float64(s.Max.Voltage)
	if maxV == 0 {
		maxV = float64(s.InputVoltage)
	}
	return ui.Sample{
		Voltage:    float64(s.Measurement.Voltage),
		Current:    float64(s.Measurement.Current),
		Power:      float64(s.Measurement.Power),
		MaxVoltage: maxV,
		Output:     s.Running,
		Mode:       mode,
		Protection: s.State.String(),
		Extra: []ui.Detail{
			{Name: "Set point", Value: s.Set.String()},
			{Name: "Input", Value: fmt.Sprintf("%.2f V", s.InputVoltage)},
			{Name: "Temp", Value: fmt.Sprintf("%.1f C", s.Temperature)},
			{Name: "Energy", Value: fmt.Sprintf("%.3f Wh", s.Energy)},
		},
	}
}

func dp100Sampler(s *dp100.Session) ui.SampleFunc {
	return func() (ui.Sample, error) {
		info, err := s.BasicInfo()
		if err != nil {
			return ui.Sample{}, err
		}
		return dp100Sample(info), nil
	}
}

func dp100Sample(b *dp100.BasicInfo) ui.Sample {
	running := b.Output == dp100.OutputCC || b.Output == dp100.OutputCV
	mode := ""
	if running {
		mode = b.Output.String()
	}
	return ui.Sample{
		Voltage:    b.OutputVoltage.InexactFloat64(),
		Current:    b.OutputCurrent.InexactFloat64(),
		Power:      b.Power().InexactFloat64(),
		MaxVoltage: b.MaxVoltage.InexactFloat64(),
		Output:     running,
		Mode:       mode,
		Protection: b.State.String(),
		Extra: []ui.Detail{
			{Name: "Input", Value: b.InputVoltage.String() + " V"},
			{Name: "Temp", Value: b.Temperature1.String() + " C"},
			{Name: "USB 5V", Value: b.DC5V.String() + " V"},
		},
	}
}
