package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/engine"
	"taskline/internal/mcpserver"
	"taskline/internal/tasks"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Taskline CLI",
	Long: `Taskline keeps prioritized task lists in a local SQLite workspace and
exposes them as tools to agents over MCP (stdio or streamable HTTP) and a REST API.
- Lists: named groups of tasks, matched by name ignoring case.
- Tasks: name, description and a priority (urgent, high, medium, low).
- Tools: every operation is a registered tool; 'tl tools' lists them and 'tl call' runs one.
- Event log: every change is recorded, view it with 'tl log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default <workspace>/taskline.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (trace, debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(versionCmd())
}

// --- tools ---

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools [name]",
		Short: "List registered tools, or show one tool's schemas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					d, ok := a.Registry.Get(args[0])
					if !ok {
						return &engine.ToolNotFoundError{Name: args[0], Available: a.Registry.Names()}
					}
					return printJSON(d.Metadata())
				}
				md := a.Engine.Tools()
				if viper.GetBool("json") {
					return printJSON(md)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Name", "Description"})
				for _, m := range md {
					tw.AppendRow(table.Row{m.Name, m.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func callCmd() *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "call <tool> [key=value...]",
		Short: "Invoke a tool through the engine",
		Long: `Invoke a registered tool. Parameters come from --params (a JSON object)
and key=value pairs. Values for string fields of the tool's input schema are
taken verbatim (name=2024 stays "2024"); other values that parse as JSON keep
their type, anything else is a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var literal map[string]bool
				if d, ok := a.Registry.Get(args[0]); ok {
					literal = stringFields(d.Input)
				}
				params, err := buildParams(raw, args[1:], literal)
				if err != nil {
					return err
				}
				res, err := a.Engine.Call(ctx, args[0], params)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().StringVarP(&raw, "params", "p", "", "parameters as a JSON object")
	return cmd
}

func batchCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a JSON array of {name, parameters} calls in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(file)
			if err != nil {
				return err
			}
			calls, err := parseBatch(data)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				results := a.Engine.CallBatch(ctx, calls)
				if viper.GetBool("json") {
					return printJSON(results)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Tool", "OK", "Error"})
				for i, r := range results {
					tw.AppendRow(table.Row{i + 1, r.Name, r.Success, r.Error})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "batch file, - for stdin")
	return cmd
}

// --- lists ---

func listCmd() *cobra.Command {
	lst := &cobra.Command{Use: "list", Short: "Manage lists"}
	lst.AddCommand(listLsCmd())
	lst.AddCommand(listCreateCmd())
	return lst
}

func listLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "Show all lists with task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.Call(ctx, tasks.ToolListLists, nil)
				if err != nil {
					return err
				}
				out := res.(tasks.ListListsResult)
				if viper.GetBool("json") {
					return printJSON(out)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Active", "Done", "Archived", "Created"})
				for _, l := range out.Lists {
					c := l.TaskCounts
					tw.AppendRow(table.Row{l.ID, l.Name, c.Active, c.Completed, c.Archived, l.Created})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func listCreateCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"name": args[0]}
			if desc != "" {
				params["description"] = desc
			}
			return callAndPrintMessage(cmd.Context(), tasks.ToolCreateList, params)
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "list description")
	return cmd
}

// --- tasks ---

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskLsCmd())
	t.AddCommand(taskAddCmd())
	t.AddCommand(taskIDCmd("done", "Mark a task completed", tasks.ToolCompleteTask))
	t.AddCommand(taskIDCmd("archive", "Archive a task", tasks.ToolArchiveTask))
	return t
}

func taskLsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ls <list>",
		Short: "Show the tasks of a list ordered by priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.Call(ctx, tasks.ToolGetTasks, map[string]any{
					"list_name":         args[0],
					"include_completed": all,
				})
				if err != nil {
					return err
				}
				out := res.(tasks.GetTasksResult)
				if viper.GetBool("json") {
					return printJSON(out)
				}
				tw := newTable()
				tw.SetTitle(out.List)
				tw.AppendHeader(table.Row{"ID", "", "Priority", "Name", "Created", "Status"})
				for _, t := range out.Tasks {
					tw.AppendRow(table.Row{t.ID, t.Priority.Glyph(), t.Priority, t.Name, t.Created, taskStatus(t)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed and archived tasks")
	return cmd
}

func taskStatus(t tasks.TaskView) string {
	switch {
	case t.Archived != nil:
		return "archived " + *t.Archived
	case t.Completed != nil:
		return "done " + *t.Completed
	}
	return "open"
}

func taskAddCmd() *cobra.Command {
	var desc, priority string
	cmd := &cobra.Command{
		Use:   "add <list> <name>",
		Short: "Add a task to a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"list_name": args[0], "name": args[1]}
			if desc != "" {
				params["description"] = desc
			}
			if priority != "" {
				params["priority"] = strings.ToLower(priority)
			}
			return callAndPrintMessage(cmd.Context(), tasks.ToolCreateTask, params)
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&priority, "priority", "P", "", "urgent, high, medium or low")
	return cmd
}

func taskIDCmd(use, short, tool string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return callAndPrintMessage(cmd.Context(), tool, map[string]any{"task_id": id})
		},
	}
}

// --- log ---

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every list and task change is recorded as an event.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Repo.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Payload"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

// --- servers ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (REST API and MCP streamable HTTP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if addr != "" {
					a.Config.Server.Addr = addr
				}
				if basePath != "" {
					a.Config.Server.BasePath = basePath
				}
				srv, err := a.HTTPServer()
				if err != nil {
					return err
				}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				a.Log.Info().
					Str("addr", srv.Addr).
					Str("api", a.Config.Server.BasePath).
					Str("mcp", a.Config.Server.MCPPath).
					Msg("serving taskline (OpenAPI at /openapi.json, Swagger UI at /docs)")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides server.base_path)")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.MCPServer()
				if err != nil {
					return err
				}
				a.Log.Info().Int("tools", len(a.Registry.Names())).Msg("serving MCP on stdio")
				return mcpserver.ServeStdio(s)
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	cfg, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := viper.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

// withApp opens the workspace for the duration of fn. Logs go to stderr so
// stdout stays clean for command output and the MCP stdio transport.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		Config:    cfg,
		LogWriter: os.Stderr,
		Version:   version,
	})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

func callAndPrintMessage(ctx context.Context, tool string, params map[string]any) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		res, err := a.Engine.Call(ctx, tool, params)
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			return printJSON(res)
		}
		switch r := res.(type) {
		case tasks.TaskResult:
			fmt.Println(r.Message)
		case tasks.CreateListResult:
			fmt.Println(r.Message)
		default:
			return printJSON(res)
		}
		return nil
	})
}

func readInput(file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
