package light

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"isg-light-terminal/pkg/isg"
)

var controllerConfig isg.Config

// SetControllerConfig sets the controller configuration instance.
func SetControllerConfig(cfg isg.Config) {
	controllerConfig = cfg
}

// NewLightCmd creates the light command
func NewLightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "light",
		Short: "Control the light",
		Long: `Commands to switch the controller's light and inspect its state.

"on" and "off" talk to the controller directly; a rejected session triggers
one re-login and one retry. "status" asks a running bridge for the last
commanded state.`,
	}

	cmd.AddCommand(newOnCmd())
	cmd.AddCommand(newOffCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newIdentifyCmd())

	return cmd
}

func newOnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "on",
		Short: "Turn the light on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(true)
		},
	}
}

func newOffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "off",
		Short: "Turn the light off",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(false)
		},
	}
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last commanded state",
		Long: `Query a running bridge for the last commanded light state.

The controller offers no read-back, so the state is whatever was last
commanded through the bridge, not a measurement.`,
		RunE: runStatus,
	}

	cmd.Flags().String("api", "http://127.0.0.1:8080", "Base URL of a running bridge")

	return cmd
}

func newIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "Trigger the identify hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := isg.NewClient(controllerConfig)
			if err != nil {
				return err
			}
			client.Identify()
			return nil
		},
	}
}

func runSet(on bool) error {
	client, err := isg.NewClient(controllerConfig)
	if err != nil {
		return err
	}

	// No prior login: the first command comes back "Restricted Access",
	// which makes the client sign in and retry.
	if err := client.SetOn(context.Background(), on); err != nil {
		return fmt.Errorf("light command failed: %w", err)
	}

	state := "off"
	if on {
		state = "on"
	}
	fmt.Printf("✓ Light %s\n", state)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	api, _ := cmd.Flags().GetString("api")

	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(api + "/api/light")
	if err != nil {
		return fmt.Errorf("bridge not reachable at %s: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge answered HTTP %d", resp.StatusCode)
	}

	var state struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return fmt.Errorf("decoding bridge response: %w", err)
	}

	if state.On {
		fmt.Println("Light: on (last commanded)")
	} else {
		fmt.Println("Light: off (last commanded)")
	}
	return nil
}
