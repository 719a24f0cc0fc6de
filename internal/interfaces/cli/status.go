package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/meshdecomp/pkg/client"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last decomposition of a running watch server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if server == "" {
				server = serverURL(cliCtx.Config.Server.Addr)
			}
			c, err := client.NewClient(server, client.WithTimeout(timeout))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			report := statusReport{Server: server}
			ready, err := c.Readiness(ctx)
			var apiErr *client.APIError
			if err != nil && !errors.As(err, &apiErr) {
				return err
			}
			report.Ready = ready.Ready()

			report.Run, err = c.LastRun(ctx)
			if errors.As(err, &apiErr) && apiErr.IsNotFound() {
				return errors.NotFound("no decomposition has completed yet").WithDetail(server)
			}
			if err != nil {
				return err
			}
			return PrintResult(cmd, report)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "status server URL (default from server.addr)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

// serverURL turns a listen address into a URL on the local host.
func serverURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

type statusReport struct {
	Server string      `json:"server"`
	Ready  bool        `json:"ready"`
	Run    *client.Run `json:"run"`
}

func (r statusReport) String() string {
	s := r.Run.Summary
	var sb strings.Builder
	fmt.Fprintf(&sb, "server      %s (ready: %t)\n", r.Server, r.Ready)
	fmt.Fprintf(&sb, "run         %s at %s\n", r.Run.RunID, r.Run.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "output      %s\n", r.Run.Output)
	fmt.Fprintf(&sb, "cells       %d (fine %d, base %d, outside base %d)\n", s.Cells, s.FineCells, s.BaseCells, s.OutsideBase)
	fmt.Fprintf(&sb, "partitions  %d (empty %d, stray cells %d)\n", s.Partitions, s.EmptyPartitions, s.Stray)
	fmt.Fprintf(&sb, "imbalance   %.3f\n", s.Imbalance)
	return sb.String()
}

func (r statusReport) TableHeaders() []string {
	return []string{"ID", "CELLS"}
}

func (r statusReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Run.Summary.Counts))
	for id, n := range r.Run.Summary.Counts {
		rows = append(rows, []string{strconv.Itoa(id), strconv.Itoa(n)})
	}
	return rows
}
