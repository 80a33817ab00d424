package command

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pirate-rpc/client"
	"pirate-rpc/cmd/pirate/rpcs"
)

func newAddNameCommand(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add-name",
		Short: "Add a name to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			_, err = client.Call(cmd.Context(), cli, rpcs.AddNameRpc, name)
			return errors.Wrap(err, "add-name")
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "name to add")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newPrintNamesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "print-names",
		Short: "Fetch all names from the server and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			names, err := client.Call(cmd.Context(), cli, rpcs.GetNamesRpc, struct{}{})
			if err != nil {
				return errors.Wrap(err, "print-names")
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the server's counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			count, err := client.Call(cmd.Context(), cli, rpcs.GetCountRpc, struct{}{})
			if err != nil {
				return errors.Wrap(err, "count")
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

func newIncrCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "incr",
		Short: "Increment the server's counter and print the new value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			count, err := client.Call(cmd.Context(), cli, rpcs.IncrementRpc, struct{}{})
			if err != nil {
				return errors.Wrap(err, "incr")
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}
