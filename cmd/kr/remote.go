package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// RemotesConfig is the on-disk list of recipe servers kr can talk to.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is one recipe server: its HTTP API plus the optional NATS and gRPC
// endpoints used by watch and health.
type Remote struct {
	URL         string `toml:"url"`
	Token       string `toml:"token,omitempty"`
	NATSURL     string `toml:"nats_url,omitempty"`
	GRPCAddr    string `toml:"grpc_addr,omitempty"`
	Description string `toml:"description,omitempty"`
}

func (c RemotesConfig) lookup(name string) (Remote, error) {
	r, ok := c.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

func (c RemotesConfig) names() []string {
	return slices.Sorted(maps.Keys(c.Remotes))
}

// remoteConfigPath returns ~/.local/state/krecipes/remotes.toml, creating
// the directory if needed.
func remoteConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "krecipes")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

func loadRemotesConfig() (RemotesConfig, error) {
	cfg := RemotesConfig{}
	path, err := remoteConfigPath()
	if err != nil {
		return cfg, err
	}
	_, err = toml.DecodeFile(path, &cfg)
	switch {
	case os.IsNotExist(err):
		cfg = RemotesConfig{}
	case err != nil:
		return RemotesConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]Remote)
	}
	return cfg, nil
}

// saveRemotesConfig replaces the file atomically. Tokens live in it, so it
// is only readable by the owner.
func saveRemotesConfig(cfg RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// updateRemotes loads the config, applies fn and saves the result.
func updateRemotes(fn func(*RemotesConfig) error) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return saveRemotesConfig(cfg)
}

var (
	remoteOnce   sync.Once
	activeRemote Remote
)

// currentRemote returns the active remote, read once per process. A missing
// or unreadable config yields the zero Remote.
func currentRemote() Remote {
	remoteOnce.Do(func() {
		if cfg, err := loadRemotesConfig(); err == nil && cfg.Active != "" {
			activeRemote = cfg.Remotes[cfg.Active]
		}
	})
	return activeRemote
}

func activeRemoteURL() string      { return currentRemote().URL }
func activeRemoteToken() string    { return currentRemote().Token }
func activeRemoteNATSURL() string  { return currentRemote().NATSURL }
func activeRemoteGRPCAddr() string { return currentRemote().GRPCAddr }

const tokenVisiblePrefix = 8

// maskToken hides everything after the first few characters. fill "..."
// elides the tail; any other fill is repeated once per hidden character.
func maskToken(token, fill string) string {
	hidden := len(token) - tokenVisiblePrefix
	switch {
	case hidden <= 0:
		return token
	case fill == "...":
		return token[:tokenVisiblePrefix] + fill
	default:
		return token[:tokenVisiblePrefix] + strings.Repeat(fill, hidden)
	}
}

var remoteCmd = &cobra.Command{
	Use:               "remote",
	Short:             "Manage named recipe servers",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a remote, or replace one with the same name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		r := Remote{URL: args[1]}
		r.Token, _ = cmd.Flags().GetString("token")
		r.NATSURL, _ = cmd.Flags().GetString("nats")
		r.GRPCAddr, _ = cmd.Flags().GetString("grpc")
		r.Description, _ = cmd.Flags().GetString("description")

		err := updateRemotes(func(cfg *RemotesConfig) error {
			cfg.Remotes[name] = r
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q added (%s)\n", name, r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Forget a remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if _, err := cfg.lookup(name); err != nil {
				return err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes; the active one is starred",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(out, "no remotes configured")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tTOKEN\tDESCRIPTION")
		for _, name := range cfg.names() {
			r := cfg.Remotes[name]
			marker := " "
			if name == cfg.Active {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", marker, name, r.URL, maskToken(r.Token, "..."), r.Description)
		}
		return w.Flush()
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Make a remote active; with no name, go back to the default server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		err := updateRemotes(func(cfg *RemotesConfig) error {
			if name != "" {
				if _, err := cfg.lookup(name); err != nil {
					return err
				}
			}
			cfg.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "active remote cleared")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", name)
		}
		return nil
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a remote's endpoints (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active remote; specify a name or run 'kr remote use <name>'")
		}
		r, err := cfg.lookup(name)
		if err != nil {
			return err
		}

		label := name
		if name == cfg.Active {
			label += " (active)"
		}
		rows := [][2]string{
			{"name", label},
			{"description", r.Description},
			{"url", r.URL},
			{"token", maskToken(r.Token, "*")},
			{"nats_url", r.NATSURL},
			{"grpc_addr", r.GRPCAddr},
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, row := range rows {
			if row[1] != "" {
				fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1])
			}
		}
		return w.Flush()
	},
}

func init() {
	f := remoteAddCmd.Flags()
	f.String("token", "", "bearer token sent to the server")
	f.String("nats", "", "NATS URL used by kr watch")
	f.String("grpc", "", "gRPC address used by kr health")
	f.String("description", "", "free-form note shown by list and show")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}
