package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"isg-light-terminal/pkg/bridge"
	"isg-light-terminal/pkg/config"
	"isg-light-terminal/pkg/core"
	"isg-light-terminal/pkg/isg"
)

var (
	controllerConfig isg.Config
	debugFlagSet     bool
)

// SetControllerConfig sets the controller configuration instance.
func SetControllerConfig(cfg isg.Config, debug bool) {
	controllerConfig = cfg
	debugFlagSet = debug
}

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Long: `Commands to run the HTTP/MQTT bridge that host frameworks talk to.

The bridge keeps one client and the last commanded light state in memory;
nothing is persisted across restarts.`,
	}

	cmd.AddCommand(newStartCmd())

	return cmd
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bridge",
		Long: `Start the bridge and serve the light until interrupted.

Controller settings come from the config file when given; flags override
file values.`,
		RunE: runStart,
	}

	cmd.Flags().StringP("config", "c", "", "Path to a YAML bridge config file")
	cmd.Flags().StringP("listen", "l", "", "HTTP listen address (default :8080)")
	cmd.Flags().String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://broker:1883 (optional)")
	cmd.Flags().String("mqtt-topic", "", "MQTT base topic (default isg/light)")
	cmd.Flags().String("mqtt-client-id", "", "MQTT client id")
	cmd.Flags().String("mqtt-username", "", "MQTT username")
	cmd.Flags().String("mqtt-password", "", "MQTT password")

	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	override := config.Bridge{
		Name:     controllerConfig.Name,
		Hostname: controllerConfig.Hostname,
		Username: controllerConfig.Username,
		Password: controllerConfig.Password,
		Debug:    debugFlagSet,
		Listen:   listen,
	}
	if controllerConfig.Timeout > 0 {
		override.TimeoutSeconds = int(controllerConfig.Timeout / time.Second)
	}
	if broker, _ := cmd.Flags().GetString("mqtt-broker"); broker != "" {
		topic, _ := cmd.Flags().GetString("mqtt-topic")
		clientID, _ := cmd.Flags().GetString("mqtt-client-id")
		username, _ := cmd.Flags().GetString("mqtt-username")
		password, _ := cmd.Flags().GetString("mqtt-password")
		override.MQTT = &config.MQTT{
			Broker:   broker,
			Topic:    topic,
			ClientID: clientID,
			Username: username,
			Password: password,
		}
	}

	cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Debug && !debugFlagSet {
		core.InitLogger("debug")
	}

	client, err := isg.NewClient(isg.Config{
		Name:     cfg.Name,
		Hostname: cfg.Hostname,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	server := bridge.NewServer(cfg.Listen, client)

	if cfg.MQTT != nil {
		publisher, err := bridge.NewPublisher(bridge.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, client)
		if err != nil {
			return fmt.Errorf("mqtt setup failed: %w", err)
		}
		server.SetPublisher(publisher)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	core.Logger.Info().Msgf("Bridge is running on %s. Press Ctrl+C to stop.", server.Addr())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	<-signalChan

	core.Logger.Info().Msg("Shutting down bridge...")
	if err := server.Stop(); err != nil {
		return fmt.Errorf("error stopping bridge: %w", err)
	}

	core.Logger.Info().Msg("Bridge stopped.")
	return nil
}
