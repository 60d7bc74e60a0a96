package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type serverOptions struct {
	configDir  string
	tuningPath string
	prefabDir  string
	worldID    string
	dataDir    string

	snapshotPath string
	loadLatest   bool

	addr        string
	metricsAddr string
	allowRemote bool
	disableDB   bool
	logLevel    string
}

func (o *serverOptions) tuningFile() string {
	if p := strings.TrimSpace(o.tuningPath); p != "" {
		return p
	}
	return filepath.Join(o.configDir, "tuning.yaml")
}

func (o *serverOptions) prefabsDir() string {
	if p := strings.TrimSpace(o.prefabDir); p != "" {
		return p
	}
	return filepath.Join(o.configDir, "prefabs")
}

func (o *serverOptions) worldDir() string {
	return filepath.Join(o.dataDir, "worlds", o.worldID)
}

// NewRootCmd creates the server command.
func NewRootCmd() *cobra.Command {
	opts := &serverOptions{}
	cmd := &cobra.Command{
		Use:   "opendoors",
		Short: "Run the door lock world server",
		Long: `Run a world whose unowned secure doors, hatches and gates are never left
locked while open. Control clients connect over websocket at /v1/ws.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.worldID, "world", "world_1", "world id")
	pf.StringVar(&opts.dataDir, "data", "./data", "runtime data directory")

	f := cmd.Flags()
	f.StringVar(&opts.configDir, "configs", "./configs", "config directory")
	f.StringVar(&opts.tuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	f.StringVar(&opts.prefabDir, "prefabs", "", "prefab template directory (default: <configs>/prefabs)")
	f.StringVar(&opts.snapshotPath, "snapshot", "", "snapshot to load (optional)")
	f.BoolVar(&opts.loadLatest, "load-latest-snapshot", true, "load the latest snapshot from the data dir when --snapshot is empty")
	f.StringVar(&opts.addr, "addr", ":8080", "control websocket listen address")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "127.0.0.1:9100", "metrics and health listen address (empty to disable)")
	f.BoolVar(&opts.allowRemote, "allow-remote", false, "accept control connections from non-loopback addresses")
	f.BoolVar(&opts.disableDB, "disable-db", false, "disable the sqlite audit index")
	f.StringVar(&opts.logLevel, "log-level", "", "override the tuning log level")

	cmd.AddCommand(newHistoryCmd(opts))
	return cmd
}
