package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dmelani/godbg/config"
	"github.com/dmelani/godbg/debugger"
)

func main() {
	pid := 0
	configPath := ""
	logLevel := ""

	rootCmd := &cobra.Command{
		Use:           "godbg [flags] <path-to-binary> [args...]",
		Short:         "A debugger for native x86-64 linux programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if pid != 0 && len(args) != 0 {
				return fmt.Errorf("cannot both attach to a pid and launch a binary")
			}
			if pid == 0 && len(args) == 0 {
				return fmt.Errorf("expected a binary to launch or a pid to attach to")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			setupLogging(cfg, logLevel)

			db, err := newDebugger(pid, args)
			if err != nil {
				return err
			}
			defer func() {
				err := db.Close()
				if err != nil {
					logrus.WithError(err).Error("failed to detach from process")
				}
			}()

			return runRepl(db, cfg)
		},
	}

	rootCmd.Flags().IntVarP(&pid, "pid", "p", 0, "attach to existing process pid")
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log verbosity")

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "godbg:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(path)
	}
	return config.LoadConfig()
}

func setupLogging(cfg *config.Config, override string) {
	levelName := cfg.LogLevel
	if override != "" {
		levelName = override
	}

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.WarnLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
}

func newDebugger(pid int, args []string) (*debugger.Debugger, error) {
	if pid != 0 {
		logrus.WithField("pid", pid).Debug("attaching to process")
		return debugger.AttachTo(pid)
	}

	logrus.WithField("path", args[0]).Debug("launching process")
	return debugger.StartCmdAndAttachTo(args[0], args[1:]...)
}
