package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const clientTimeout = 10 * time.Second

// NewNotifyCommand creates the notify command.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <text>",
		Short: "Post a notification to a running instance",
		Long: `Post a notification to a running instance. All arguments are joined with
spaces.

Example:
  mobitec-notify notify "Washing machine done"
  mobitec-notify --url http://sign.local:2343 notify Pizza is here`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := endpointURL(rootOpts.URL, "/notify.json")
			if err != nil {
				return err
			}
			endpoint.RawQuery = url.Values{"message": {strings.Join(args, " ")}}.Encode()

			_, err = call(cmd, http.MethodGet, endpoint.String(), "")
			return err
		},
	}
}

// NewSwitchCommand creates the switch command.
func NewSwitchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "switch [on|off]",
		Short:     "Show or set the power state of a running instance",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := endpointURL(rootOpts.URL, "/switch.json")
			if err != nil {
				return err
			}

			method, body := http.MethodGet, ""
			if len(args) == 1 {
				switch strings.ToLower(args[0]) {
				case "on":
					body = "ON"
				case "off":
					body = "OFF"
				default:
					return fmt.Errorf("invalid state %q: must be on or off", args[0])
				}
				method = http.MethodPost
			}

			state, err := call(cmd, method, endpoint.String(), body)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func endpointURL(base, path string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", base, err)
	}
	return u, nil
}

func call(cmd *cobra.Command, method, endpoint, body string) (string, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), method, endpoint, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: clientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s %s: %s", method, endpoint, resp.Status)
	}
	return string(raw), nil
}
