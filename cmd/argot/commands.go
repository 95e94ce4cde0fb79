package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/argot"
	"github.com/eringen/argot/tagquery"
	"github.com/eringen/argot/tui"
)

var (
	configPath string
	dbPath     string
	serverURL  string

	rootCmd = &cobra.Command{
		Use:   "argot",
		Short: "A tag-filtered link and discussion board",
		Long: `argot serves a small link board backed by SQLite. Posts carry tags and
can be filtered with queries such as "go+rust-ts".`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the board HTTP server",
		RunE:  runServe,
	}

	tagCmd = &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	tagCreateCmd = &cobra.Command{
		Use:   "create <name>...",
		Short: "Register one or more tag names",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTagCreate,
	}

	tagAttachCmd = &cobra.Command{
		Use:   "attach <post-id> <tag>...",
		Short: "Attach registered tags to a post",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runTagAttach,
	}

	whitelistCmd = &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the signup whitelist",
	}

	whitelistAddCmd = &cobra.Command{
		Use:   "add <username>...",
		Short: "Allow usernames to sign up",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWhitelistAdd,
	}

	queryCmd = &cobra.Command{
		Use:   "query <tag-query>",
		Short: "Evaluate a tag query against the database",
		Example: `  argot query 'go|rust'
  argot query 'go+rust-ts'
  argot query -- '-spam'`,
		Args: cobra.ExactArgs(1),
		RunE: runQuery,
	}

	tuiCmd = &cobra.Command{
		Use:   "tui [tag-query]",
		Short: "Browse a running board in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTUI,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the argot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "argot %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (ARGOT_* environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagAttachCmd)

	rootCmd.AddCommand(whitelistCmd)
	whitelistCmd.AddCommand(whitelistAddCmd)

	rootCmd.AddCommand(queryCmd)

	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVar(&serverURL, "server", argot.EnvOr("ARGOT_SERVER", "http://localhost:5000"), "Board base URL")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (argot.BoardConfig, error) {
	var cfg argot.BoardConfig
	if configPath != "" {
		var err error
		if cfg, err = argot.LoadConfigFile(configPath); err != nil {
			return cfg, err
		}
	}
	cfg = argot.ConfigFromEnv(cfg)
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	return cfg.WithDefaults(), nil
}

func openStore() (*argot.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return argot.NewStore(cfg.DatabasePath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app := argot.New(cfg, argot.ViewFuncs{})
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Start(ctx)
}

func runTagCreate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, name := range args {
		if !argot.ValidTagName(name) {
			return fmt.Errorf("invalid tag name %q: only letters and digits are allowed", name)
		}
		if _, err := store.CreateTag(cmd.Context(), name); err != nil {
			return fmt.Errorf("create tag %q: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created tag %s\n", name)
	}
	return nil
}

func runTagAttach(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.AttachTags(cmd.Context(), args[0], args[1:]); err != nil {
		return fmt.Errorf("attach tags to %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tagged %s\n", args[0])
	return nil
}

func runWhitelistAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, name := range args {
		if err := store.AddToWhitelist(cmd.Context(), name); err != nil {
			return fmt.Errorf("whitelist %q: %w", name, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "whitelisted %d user(s)\n", len(args))
	return nil
}

// runQuery evaluates directly against SQLite rather than the cached
// in-memory index the server uses.
func runQuery(cmd *cobra.Command, args []string) error {
	q, err := tagquery.Parse(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	ids, err := tagquery.Evaluate(ctx, q, store)
	if err != nil {
		return err
	}
	posts, err := store.PostsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	return printPosts(cmd.OutOrStdout(), posts)
}

func printPosts(w io.Writer, posts []argot.Post) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTAGS")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", p.ID, p.Title, p.Tags)
	}
	return tw.Flush()
}

func runTUI(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	return tui.Run(cmd.Context(), serverURL, query)
}
