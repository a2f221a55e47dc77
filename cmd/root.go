package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"isg-light-terminal/cmd/auth"
	"isg-light-terminal/cmd/light"
	"isg-light-terminal/cmd/serve"
	"isg-light-terminal/pkg/core"
	"isg-light-terminal/pkg/isg"
)

var (
	flagName     string
	flagHostname string
	flagUsername string
	flagPassword string
	flagTimeout  time.Duration
	flagDebug    bool
)

var rootCmd = &cobra.Command{
	Use:   "isg-light-terminal",
	Short: "ISG gate/light controller client",
	Long: `A CLI tool to control the light of an ISG web gate controller.

The controller only speaks through its web UI, so this tool signs in with
the login form, scrapes the session token from the configuration page and
replays it on light commands, re-authenticating when the session expires.

Examples:
  isg-light-terminal auth login -H gate.local -u admin
  isg-light-terminal light on -H gate.local -u admin -p secret
  isg-light-terminal serve start --config bridge.yaml`,
}

func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagName, "name", "", "Display name for the light")
	flags.StringVarP(&flagHostname, "hostname", "H", os.Getenv("ISG_HOSTNAME"), "Controller hostname or host:port (env ISG_HOSTNAME)")
	flags.StringVarP(&flagUsername, "username", "u", os.Getenv("ISG_USERNAME"), "Controller username (env ISG_USERNAME)")
	flags.StringVarP(&flagPassword, "password", "p", os.Getenv("ISG_PASSWORD"), "Controller password (env ISG_PASSWORD)")
	flags.DurationVar(&flagTimeout, "timeout", 0, "HTTP timeout per controller request (default 30s)")
	flags.BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(auth.NewAuthCmd())
	rootCmd.AddCommand(light.NewLightCmd())
	rootCmd.AddCommand(serve.NewServeCmd())
}

func initConfig() {
	level := "info"
	if flagDebug {
		level = "debug"
	}
	core.InitLogger(level)

	cfg := isg.Config{
		Name:     flagName,
		Hostname: flagHostname,
		Username: flagUsername,
		Password: flagPassword,
		Timeout:  flagTimeout,
	}

	// Make the controller configuration available to subcommands.
	auth.SetControllerConfig(cfg)
	light.SetControllerConfig(cfg)
	serve.SetControllerConfig(cfg, flagDebug)
}
