/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/minhbau/ember/InputParameters"
	"github.com/minhbau/ember/gas"
	"github.com/minhbau/ember/model_problems/Flame1D"
	"github.com/minhbau/ember/readfiles"
)

type Model1D struct {
	InputFile     string
	MechanismFile string
	RestartFile   string
	OutputFile    string
	PlotFile      string
	PlotSpecies   []string
	Profile       string
	PerfCounters  bool
	ProcLimit     int
}

// OneDCmd represents the 1D command
var OneDCmd = &cobra.Command{
	Use:   "1D",
	Short: "One dimensional strained flame",
	Long: `
Integrates a strained flame described by a YAML input file to its end time,
optionally restarting from and writing YAML profiles.

ember 1D -I flame.yaml -o profile.yaml --plot profile.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m1d := &Model1D{
			InputFile:     viper.GetString("1D.input"),
			MechanismFile: viper.GetString("1D.mechanism"),
			RestartFile:   viper.GetString("1D.restart"),
			OutputFile:    viper.GetString("1D.output"),
			PlotFile:      viper.GetString("1D.plot"),
			PlotSpecies:   viper.GetStringSlice("1D.plotSpecies"),
			Profile:       viper.GetString("1D.profile"),
			PerfCounters:  viper.GetBool("1D.perfCounters"),
			ProcLimit:     viper.GetInt("1D.procs"),
		}
		if len(m1d.InputFile) == 0 {
			return fmt.Errorf("must supply an input parameters file (-I, --inputFile)")
		}
		return Run1D(m1d)
	},
}

func init() {
	rootCmd.AddCommand(OneDCmd)
	flags := OneDCmd.Flags()
	flags.StringP("inputFile", "I", "", "YAML file of flame input parameters")
	flags.StringP("mechanism", "M", "", "mechanism file, overrides MechanismFile in the input")
	flags.StringP("restart", "r", "", "YAML profile to restart from")
	flags.StringP("output", "o", "", "YAML profile written every OutputStepInterval steps")
	flags.String("plot", "", "image of the final profile, type from the extension")
	flags.StringSlice("plotSpecies", nil, "species added to the profile plot")
	flags.String("profile", "", "write a pprof profile: cpu or mem")
	flags.Bool("perfCounters", false, "report hardware instruction counts for the run")
	flags.IntP("procs", "p", 0, "maximum worker goroutines, 0 uses all CPUs")
	for key, name := range map[string]string{
		"1D.input": "inputFile", "1D.mechanism": "mechanism", "1D.restart": "restart",
		"1D.output": "output", "1D.plot": "plot", "1D.plotSpecies": "plotSpecies",
		"1D.profile": "profile", "1D.perfCounters": "perfCounters", "1D.procs": "procs",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func Run1D(m1d *Model1D) (err error) {
	var (
		fp   *InputParameters.FlameParameters
		mech *gas.Mechanism
		g    *gas.IdealGasMixture
		f    *Flame1D.FlameSystem
	)
	if fp, err = InputParameters.ReadFlameParameters(m1d.InputFile); err != nil {
		return
	}
	if m1d.MechanismFile != "" {
		fp.MechanismFile = m1d.MechanismFile
	} else if !filepath.IsAbs(fp.MechanismFile) {
		fp.MechanismFile = filepath.Join(filepath.Dir(m1d.InputFile), fp.MechanismFile)
	}
	if m1d.ProcLimit > 0 {
		fp.ProcLimit = m1d.ProcLimit
	}
	fp.Print()
	if mech, err = gas.ReadMechanism(fp.MechanismFile); err != nil {
		return
	}
	if g, err = gas.NewIdealGasMixture(mech); err != nil {
		return
	}
	if f, err = Flame1D.NewFlameSystem(fp, g); err != nil {
		return
	}
	if m1d.RestartFile != "" {
		var p *readfiles.Profile
		if p, err = readfiles.ReadProfile(m1d.RestartFile); err != nil {
			return
		}
		if err = f.LoadProfile(p); err != nil {
			return
		}
		logrus.WithField("file", m1d.RestartFile).Info("restarted from profile")
	}
	if m1d.OutputFile != "" {
		f.Output = func(f *Flame1D.FlameSystem) error {
			return readfiles.WriteProfile(m1d.OutputFile, f.Profile())
		}
	}

	switch m1d.Profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		return fmt.Errorf("unknown profile type %q, want cpu or mem", m1d.Profile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	run := func() error { return f.Run(ctx) }
	if m1d.PerfCounters {
		err = countInstructions(run)
	} else {
		err = run()
	}
	if err != nil {
		return
	}
	if m1d.PlotFile != "" {
		if err = readfiles.PlotProfile(f.Profile(), m1d.PlotSpecies, m1d.PlotFile); err != nil {
			return
		}
	}
	fmt.Printf("t = %8.5g, %d steps, Sc = %8.5g m/s, Q = %8.5g W/m^2\n",
		f.Time, f.NSteps, f.ConsumptionSpeed(), f.HeatReleaseRate())
	return
}
