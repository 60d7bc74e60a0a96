package main

import (
	"encoding/json"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	persistlog "opendoors.ai/internal/persistence/log"
)

func newHistoryCmd(opts *serverOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history X Y Z",
		Short: "Print the recorded changes of one door as JSON lines",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pos [3]int
			for i, a := range args {
				v, err := strconv.Atoi(a)
				if err != nil {
					return oops.Code("E_BAD_REQUEST").With("arg", a).Errorf("door coordinate: %v", err)
				}
				pos[i] = v
			}
			entries, err := persistlog.DoorHistory(opts.worldDir(), pos)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return oops.Wrap(err)
				}
			}
			return nil
		},
	}
}
