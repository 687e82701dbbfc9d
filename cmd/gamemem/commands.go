package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"gamemem/config"
	"gamemem/hexdump"
	"gamemem/memory"
	"gamemem/position"
	"gamemem/process"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const rootLongDesc = `gamemem reads the character position of a running game client from its memory.

Addresses are located through pointer chains listed in a YAML configuration file
(see 'gamemem config init'). The connection is reestablished automatically when
the game restarts.`

var (
	configPath  string
	processName string

	watchInterval time.Duration

	readType   string
	relative   bool
	dumpSize   int
	forceWrite bool
)

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          "gamemem",
		Short:        "Read game state from another process's memory.",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().StringVarP(&configPath, "config", "c", "gamemem.yaml", "Path of the YAML configuration file.")
	rootCommand.PersistentFlags().StringVarP(&processName, "process", "p", "", "Process name, overrides process_name from the configuration.")

	watchCommand := &cobra.Command{
		Use:   "watch",
		Short: "Print the character position until interrupted.",
		Long: `Connects to the game, starts the reconnection monitor and prints the position
every time it changes. Connection losses and reconnections are reported as they happen.`,
		Args: cobra.NoArgs,
		RunE: watchCmd,
	}
	watchCommand.Flags().DurationVarP(&watchInterval, "interval", "i", 250*time.Millisecond, "Polling interval.")
	rootCommand.AddCommand(watchCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved address of every configured pointer chain.",
		Args:  cobra.NoArgs,
		RunE:  resolveCmd,
	})

	readCommand := &cobra.Command{
		Use:   "read address",
		Short: "Read one typed value.",
		Long: `Reads one value at address. The address accepts the same notations as the
configuration file: 0x1000, 1000 (hex) or P->00001000.`,
		Args: cobra.ExactArgs(1),
		RunE: readCmd,
	}
	readCommand.Flags().StringVarP(&readType, "type", "t", "int32", "Value type: int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32, float64 or pointer.")
	addAddressFlags(readCommand.Flags())
	rootCommand.AddCommand(readCommand)

	dumpCommand := &cobra.Command{
		Use:   "dump address",
		Short: "Hex dump memory around an address.",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpCmd,
	}
	dumpCommand.Flags().IntVarP(&dumpSize, "size", "s", 64, "Number of bytes to dump.")
	addAddressFlags(dumpCommand.Flags())
	rootCommand.AddCommand(dumpCommand)

	configCommand := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file.",
	}
	initCommand := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  configInitCmd,
	}
	initCommand.Flags().BoolVarP(&forceWrite, "force", "f", false, "Overwrite an existing file, keeping it as <path>.bak.")
	configCommand.AddCommand(initCommand)
	rootCommand.AddCommand(configCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "ps [name]",
		Short: "List processes matching name, the configured process by default.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  psCmd,
	})

	return rootCommand
}

func addAddressFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&relative, "relative", "r", false, "Treat the address as an offset from the main module base.")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if processName != "" {
		cfg.ProcessName = processName
	}
	return cfg, nil
}

// connect opens a session without the monitor, for one shot commands
func connect() (*memory.Session, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s := memory.NewSession(newPlatform(), cfg)
	if err := s.Connector.Open(s.Conn); err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func targetAddress(s *memory.Session, arg string) (process.ProcessMemoryAddress, error) {
	a, err := config.ParseAddress(arg)
	if err != nil {
		return 0, err
	}
	addr := a.Process()
	if relative {
		base, ok := s.Conn.BaseAddress()
		if !ok {
			return 0, fmt.Errorf("module base of %s is unknown, use an absolute address", s.Conn.Name())
		}
		addr += base
	}
	return addr, nil
}

func watchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := memory.NewSession(newPlatform(), cfg)
	err = s.Start(ctx, memory.WithStateListener(func(st memory.State) {
		fmt.Fprintf(out, "%s %s\n", time.Now().Format("15:04:05"), st)
	}))
	if err != nil {
		return err
	}
	defer s.Close()

	positions := position.NewReader(s.Reader, cfg)
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var last position.Position
	var lastErr string
	havePosition := false

	for {
		pos, err := positions.Read(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			if err.Error() != lastErr {
				fmt.Fprintf(out, "%s error: %v\n", time.Now().Format("15:04:05"), err)
				lastErr = err.Error()
			}
			havePosition = false
		case err == nil && (!havePosition || !pos.Equal(last)):
			fmt.Fprintf(out, "%s %s\n", time.Now().Format("15:04:05"), pos)
			last, havePosition, lastErr = pos, true, ""
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func resolveCmd(cmd *cobra.Command, args []string) error {
	s, cfg, err := connect()
	if err != nil {
		return err
	}
	defer s.Close()

	if mod, ok := s.Conn.Module(); ok {
		fmt.Fprintln(cmd.OutOrStdout(), "module", mod.String())
	}

	addrs, err := position.NewReader(s.Reader, cfg).Resolve(context.Background())
	if err != nil {
		return err
	}

	axes := make([]string, 0, len(addrs))
	for axis := range addrs {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	for _, axis := range axes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", axis, addrs[axis].ToString())
	}
	return nil
}

func readCmd(cmd *cobra.Command, args []string) error {
	typ, err := memory.ParseValueType(readType)
	if err != nil {
		return err
	}

	s, _, err := connect()
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := targetAddress(s, args[0])
	if err != nil {
		return err
	}

	v, err := s.Reader.Read(addr, typ, memory.WithoutCache())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", addr.ToString(), typ.Resolve(s.Conn.PointerWidth()), v)
	return nil
}

func dumpCmd(cmd *cobra.Command, args []string) error {
	s, _, err := connect()
	if err != nil {
		return err
	}
	defer s.Close()

	addr, err := targetAddress(s, args[0])
	if err != nil {
		return err
	}

	data, err := s.Reader.ReadBytes(addr, dumpSize)
	if err != nil {
		return err
	}

	width := s.Conn.PointerWidth()
	opts := hexdump.DefaultOptions()
	opts.StartAddress = addr
	opts.PointerWidth = width
	opts.Color = isatty.IsTerminal(os.Stdout.Fd())
	if mod, ok := s.Conn.Module(); ok {
		opts.IsPointer = hexdump.ModulePointers(mod)
	} else {
		opts.IsPointer = hexdump.PlausiblePointers(width)
	}

	hexdump.DumpToWriter(cmd.OutOrStdout(), data, opts)
	return nil
}

func configInitCmd(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !forceWrite {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	fmt.Fprintln(cmd.OutOrStdout(), "wrote", abs)
	return nil
}

func psCmd(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name = cfg.ProcessName
	}

	found, err := newPlatform().FindProcessByName(name)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: %s", process.ErrProcessNotFound, name)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tPPID\tSTATE\tNAME\tEXE")
	for _, p := range found {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", p.PID, p.PPID, p.State, p.Name, p.Exe)
	}
	return w.Flush()
}
