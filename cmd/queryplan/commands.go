package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/coregx/queryplan/internal/dispatch"
	"github.com/coregx/queryplan/internal/protocol"
	"github.com/coregx/queryplan/internal/provider"
)

func newExplainCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Extract and render the execution plan of --query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.exchange(cmd, protocol.OpGetQueryPlan)
		},
	}
}

func newQueryCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Render --query and its arguments without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.exchange(cmd, protocol.OpGetQuery)
		},
	}
}

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Read one binary request from stdin and write the response to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			target, closeDB, err := o.target(true)
			if err != nil {
				return err
			}
			defer closeDB()

			return o.dispatcher().Transfer(ctx, target, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the registered plan provider identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, id := range provider.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

// exchange runs one request through the wire protocol, as a host process
// would, and prints the payload of a successful response.
func (o *options) exchange(cmd *cobra.Command, op protocol.Op) error {
	req, err := o.request(op)
	if err != nil {
		return err
	}

	target, closeDB, err := o.target(op == protocol.OpGetQueryPlan)
	if err != nil {
		return err
	}
	defer closeDB()

	var in, out bytes.Buffer
	if err := protocol.EncodeRequest(&in, req); err != nil {
		return err
	}
	if err := o.dispatcher().Transfer(cmd.Context(), target, &in, &out); err != nil {
		return err
	}

	resp, err := dispatch.ReadResponse(&out)
	if err != nil {
		return err
	}
	if resp.IsError {
		return errors.New(resp.Payload)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Payload)
	return nil
}
