package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/mcncl/gotyper-live/internal/config"
	"github.com/mcncl/gotyper-live/internal/errors"
	"github.com/mcncl/gotyper-live/internal/formatter"
	"github.com/mcncl/gotyper-live/internal/gateway"
	"github.com/mcncl/gotyper-live/internal/logging"
	"github.com/mcncl/gotyper-live/internal/metrics"
	"github.com/mcncl/gotyper-live/internal/models"
	"github.com/mcncl/gotyper-live/internal/session"
	"github.com/mcncl/gotyper-live/internal/surface/watch"
	"github.com/mcncl/gotyper-live/internal/surface/web"
	"github.com/mcncl/gotyper-live/internal/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Version information
const (
	Version = "0.1.0"
)

// Globals are flags shared by every command
type Globals struct {
	Config     string `help:"Path to config file. Defaults to .gotyper-live.yml in this or a parent directory." type:"path"`
	ServiceURL string `help:"Conversion service endpoint." name:"service-url" placeholder:"URL"`
	Debug      bool   `help:"Enable debug logging." short:"d"`
	JSONLogs   bool   `help:"Write logs as JSON." name:"json-logs"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Convert ConvertCmd `cmd:"" default:"withargs" help:"Convert one JSON document through the conversion service."`
	Serve   ServeCmd   `cmd:"" help:"Serve the live editor over HTTP."`
	Watch   WatchCmd   `cmd:"" help:"Convert a JSON file every time it is saved."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Context holds the runtime dependencies handed to every command
type Context struct {
	Ctx       context.Context
	Config    *config.Config
	Logger    *zap.SugaredLogger
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Converter gateway.Converter

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute parses args, runs the selected command and returns the exit code
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("gotyper-live"),
		kong.Description("Live JSON to Go struct conversion backed by a conversion service"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1
	}

	// With no arguments at all, read JSON interactively
	if len(args) == 0 {
		cli.Convert.Interactive = true
	}

	if kctx.Command() == "version" {
		fmt.Fprintf(stdout, "gotyper-live version %s\n", Version)
		return 0
	}

	appCtx, err := newContext(ctx, &cli, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", errors.UserFriendlyError(err))
		return 1
	}
	defer func() { _ = appCtx.Logger.Sync() }()

	if err := kctx.Run(appCtx); err != nil {
		fmt.Fprintf(stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(stderr, "\nFor help, run: gotyper-live --help\n")
		return 1
	}
	return 0
}

// newContext resolves configuration and builds the shared dependencies
func newContext(ctx context.Context, cli *CLI, stdin io.Reader, stdout, stderr io.Writer) (*Context, error) {
	cfg, err := config.LoadConfigWithCLI(cli.Config, config.CLIOverrides{
		ServiceURL: cli.ServiceURL,
		Addr:       cli.Serve.Addr,
		Debug:      cli.Debug,
		JSONLogs:   cli.JSONLogs,
	})
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{JSON: cfg.Log.JSON, Debug: cfg.Log.Debug})
	if err != nil {
		return nil, errors.NewConfigError("failed to build logger", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	logger.Debugw("Configuration resolved",
		"service_url", cfg.Service.URL,
		"timeout", cfg.Service.Timeout,
		"debounce", cfg.Editor.Debounce,
	)

	return &Context{
		Ctx:      ctx,
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Registry: reg,
		Converter: gateway.New(cfg.Service.URL,
			gateway.WithTimeout(cfg.Service.Timeout),
			gateway.WithLogger(logger),
			gateway.WithMetrics(m),
		),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

// ConvertCmd sends a single document to the conversion service
type ConvertCmd struct {
	Input       string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	Output      string `help:"Path to output Go file. If not specified, writes to stdout." short:"o" type:"path"`
	Interactive bool   `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
	Format      bool   `help:"Format the returned code according to Go standards." short:"f" default:"true" negatable:""`
}

// Run executes the convert command
func (c *ConvertCmd) Run(ctx *Context) error {
	// 1. Read JSON input
	text, err := c.readInput(ctx)
	if err != nil {
		return err
	}

	// 2. Validate before anything is sent
	if err := validator.Validate(text); err != nil {
		return err
	}

	// 3. Convert
	outcome := ctx.Converter.Convert(ctx.Ctx, text)
	if !outcome.OK() {
		return outcomeError(outcome)
	}

	// 4. Format the code if requested
	code := outcome.Payload
	if c.Format {
		var ok bool
		if code, ok = formatter.NewFormatter().FormatOrKeep(code); !ok {
			ctx.Logger.Debugw("Conversion result is not Go source, writing it unchanged")
		}
	}

	// 5. Output the result
	return c.writeOutput(ctx, code)
}

// outcomeError turns a failed conversion into the matching application error
func outcomeError(outcome models.Outcome) error {
	if outcome.Kind == models.ServiceError {
		return errors.NewServiceError(outcome.Message, outcome.Err)
	}
	return errors.WithHint(
		errors.NewTransportError(outcome.Message, outcome.Err),
		"check that the conversion service is running and --service-url points at it",
	)
}

// readInput reads JSON from file or stdin
func (c *ConvertCmd) readInput(ctx *Context) (string, error) {
	if c.Input != "" {
		data, err := os.ReadFile(c.Input)
		if err != nil {
			if os.IsNotExist(err) {
				return "", errors.NewInputError(fmt.Sprintf("failed to read file '%s'", c.Input), errors.ErrFileNotFound)
			}
			return "", errors.NewInputError(fmt.Sprintf("failed to read file '%s'", c.Input), err)
		}
		if len(data) == 0 {
			return "", errors.NewInputError(fmt.Sprintf("file '%s' is empty", c.Input), errors.ErrFileEmpty)
		}
		return string(data), nil
	}

	// Interactive mode only makes sense on a terminal
	if f, ok := ctx.Stdin.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return "", errors.NewInputError("failed to access stdin", err)
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			if c.Interactive {
				return c.readInteractiveInput(ctx)
			}
			return "", errors.NewInputError("no input provided", errors.ErrNoInput)
		}
	}

	// Read from stdin (piped input)
	data, err := io.ReadAll(ctx.Stdin)
	if err != nil {
		return "", errors.NewInputError("failed to read from stdin", err)
	}
	if len(data) == 0 {
		return "", errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}
	return string(data), nil
}

// readInteractiveInput lets users paste JSON and signal completion with
// Ctrl+D (EOF)
func (c *ConvertCmd) readInteractiveInput(ctx *Context) (string, error) {
	fmt.Fprintln(ctx.Stderr, "GoTyper Live Interactive Mode")
	fmt.Fprintln(ctx.Stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	reader := bufio.NewReader(ctx.Stdin)
	var jsonBuilder strings.Builder

	for {
		line, err := reader.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.NewInputError("error reading input", err)
		}
	}

	jsonData := jsonBuilder.String()
	if len(jsonData) == 0 {
		return "", errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	fmt.Fprintln(ctx.Stderr, "\nConverting JSON...")
	return jsonData, nil
}

// writeOutput writes code to file or stdout
func (c *ConvertCmd) writeOutput(ctx *Context, code string) error {
	if c.Output != "" {
		if err := os.WriteFile(c.Output, []byte(code), 0o644); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", c.Output), err)
		}
		fmt.Fprintf(ctx.Stderr, "Generated Go code written to %s\n", c.Output)
		return nil
	}

	if _, err := fmt.Fprintln(ctx.Stdout, strings.TrimSpace(code)); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}

// ServeCmd runs the web surface
type ServeCmd struct {
	Addr string `help:"Listen address. Overrides server.addr." placeholder:"HOST:PORT"`
}

// Run executes the serve command
func (s *ServeCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	handler := web.NewHandler(ctx.Ctx, web.Options{
		Converter:      ctx.Converter,
		Debounce:       cfg.Editor.Debounce,
		NoticeDelay:    cfg.Notice.Delay,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         ctx.Logger,
		Metrics:        ctx.Metrics,
		Gatherer:       ctx.Registry,
	})
	return web.ListenAndServe(ctx.Ctx, cfg.Server.Addr, handler, ctx.Logger)
}

// WatchCmd follows a file on disk
type WatchCmd struct {
	File string `arg:"" help:"JSON file to watch." type:"path"`
}

// Run executes the watch command
func (w *WatchCmd) Run(ctx *Context) error {
	controller := session.New(ctx.Converter,
		session.WithDebounce(ctx.Config.Editor.Debounce),
		session.WithLogger(ctx.Logger),
		session.WithMetrics(ctx.Metrics),
		session.WithSeed(session.Seed{}),
	)
	defer controller.Close()

	return watch.New(w.File, controller, ctx.Stdout, ctx.Logger).Run(ctx.Ctx)
}

// VersionCmd prints the version; execute handles it before configuration
// is loaded
type VersionCmd struct{}

// Run executes the version command
func (v *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintf(ctx.Stdout, "gotyper-live version %s\n", Version)
	return err
}
