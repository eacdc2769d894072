package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string // directory holding config.yaml
	URL       string // base URL of a running instance, for client commands
}

// NewRootCommand creates the root command for the sign controller.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mobitec-notify",
		Short: "Notification and air-quality display for a Mobitec sign",
		Long: `Drives a Mobitec dot-matrix sign with the time, Home Assistant air-quality
readings and short-lived notifications posted over HTTP or MQTT.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", ".", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "http://localhost:2343", "base URL of a running instance")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewNotifyCommand(opts))
	cmd.AddCommand(NewSwitchCommand(opts))

	return cmd
}
