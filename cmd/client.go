package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-toggler/internal/pipe"
	"github.com/timvw/pane-toggler/internal/protocol"
)

var errRequestFailed = errors.New("request failed")

var (
	flagPipeName    string
	flagPipePayload string
	flagCwd         string
	flagTimeout     time.Duration
)

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Send a raw pipe message",
	Long: `Send one message to a running pane-toggler and print the JSON response.

The payload is read from --payload, or from stdin when --payload is not set.
The exit status is 1 when the response has "ok": false.

Example:
  pane-toggler pipe --name toggler::toggle --payload '{"pane_id":"logs","cmd":"tail","args":["-f","app.log"]}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := flagPipePayload
		if !cmd.Flags().Changed("payload") {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			payload = strings.TrimSpace(string(data))
		}
		return sendAndPrint(cmd, protocol.Message{Name: flagPipeName, Payload: payload})
	},
}

var openCmd = &cobra.Command{
	Use:   "open <pane_id> -- <cmd> [args...]",
	Short: "Open a named command pane",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, protocol.CommandOpen, args)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <pane_id>",
	Short: "Close a named command pane",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, protocol.CommandClose, args)
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <pane_id> [-- <cmd> [args...]]",
	Short: "Close a named pane if open, otherwise open it",
	Long: `Toggle a named command pane.

If the pane is open it is closed. Otherwise it is opened with the given
command, which is then required.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, protocol.CommandToggle, args)
	},
}

func init() {
	pipeCmd.Flags().StringVar(&flagPipeName, "name", "", "pipe channel name, e.g. toggler::open")
	pipeCmd.Flags().StringVar(&flagPipePayload, "payload", "", "JSON payload (default: read stdin)")
	_ = pipeCmd.MarkFlagRequired("name")

	for _, c := range []*cobra.Command{openCmd, toggleCmd} {
		c.Flags().StringVar(&flagCwd, "cwd", "", "working directory for the command")
	}
	for _, c := range []*cobra.Command{pipeCmd, openCmd, closeCmd, toggleCmd} {
		c.Flags().DurationVar(&flagTimeout, "timeout", 0, "give up waiting for the response after this long (0 waits indefinitely)")
		rootCmd.AddCommand(c)
	}
}

// buildRequest turns "<pane_id> [cmd args...]" into a request payload.
func buildRequest(args []string, cwd string) protocol.Request {
	req := protocol.Request{PaneID: args[0], Cwd: cwd}
	if len(args) > 1 {
		req.Cmd = args[1]
		req.Args = args[2:]
	}
	if len(req.Args) == 0 {
		req.Args = nil
	}
	return req
}

func sendCommand(cmd *cobra.Command, command protocol.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	payload, err := protocol.EncodeRequest(buildRequest(args, flagCwd))
	if err != nil {
		return err
	}
	msg := protocol.Message{Name: cfg.PipePrefix + string(command), Payload: payload}
	return sendMessage(cmd, cfg.Socket, msg)
}

func sendAndPrint(cmd *cobra.Command, msg protocol.Message) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return sendMessage(cmd, cfg.Socket, msg)
}

func sendMessage(cmd *cobra.Command, socket string, msg protocol.Message) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if flagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagTimeout)
		defer cancel()
	}

	resp, err := pipe.Send(ctx, socket, msg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.OK {
		cmd.SilenceErrors = true
		return errRequestFailed
	}
	return nil
}
