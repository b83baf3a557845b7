// Package client runs one operator session: it reads lines, dispatches
// commands, reacts to world events and runs plugins and hooks.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/vcterm/internal/action"
	"voxelcraft.ai/vcterm/internal/behavior"
	"voxelcraft.ai/vcterm/internal/cmdline"
	"voxelcraft.ai/vcterm/internal/command"
	"voxelcraft.ai/vcterm/internal/commands"
	"voxelcraft.ai/vcterm/internal/complete"
	"voxelcraft.ai/vcterm/internal/config"
	"voxelcraft.ai/vcterm/internal/console"
	"voxelcraft.ai/vcterm/internal/history"
	"voxelcraft.ai/vcterm/internal/plugin"
	"voxelcraft.ai/vcterm/internal/transcript"
	"voxelcraft.ai/vcterm/internal/world"
)

// LineReader supplies operator lines. ReadLine returns io.EOF at end of
// input and console.ErrInterrupt on Ctrl-C.
type LineReader interface {
	ReadLine() (string, error)
}

type Options struct {
	Config  config.Config
	World   world.World
	Printer *console.Printer
	// Connect starts the world session. It runs after the plugins'
	// before-login hooks.
	Connect func()
	// Plugins are the available plugins; Config.Plugins picks the enabled ones.
	Plugins []plugin.Plugin
	// History and Transcript are optional.
	History    *history.Store
	Transcript *transcript.Transcript
	Logger     *zap.Logger
	Version    string
	// Debug dumps full stacks on a crash and keeps running.
	Debug bool
	// Timing overrides the behavior loop intervals.
	Timing *behavior.Timing
	// Exit ends the process after a crash. Defaults to os.Exit.
	Exit func(code int)
}

// queued is a remote or hook command line waiting for the command loop.
type queued struct {
	line   string
	origin command.Origin
}

// queueSize bounds remote and hook lines waiting to run.
const queueSize = 64

type hook struct {
	key  string
	line string
	once bool
}

type Client struct {
	opts Options
	cfg  config.Config
	log  *zap.Logger
	p    *console.Printer
	w    world.World

	ctx    context.Context
	cancel context.CancelFunc

	reg     *command.Registry
	disp    *command.Dispatcher
	state   *action.State
	arbiter *action.Arbiter
	runner  *behavior.Runner
	vars    *cmdline.Vars
	host    *plugin.Host
	remote  *regexp.Regexp
	hooks   map[world.EventKind][]hook
	tree    atomic.Pointer[complete.Node]
	queue   chan queued

	wg sync.WaitGroup

	mu       sync.Mutex
	loggedIn bool
	loaded   bool
	buffered []world.Event
	fired    map[string]bool
}

func New(opts Options) (*Client, error) {
	if opts.World == nil || opts.Printer == nil {
		return nil, errors.New("client: world and printer are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	cfg := opts.Config
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:    opts,
		cfg:     cfg,
		log:     opts.Logger.Named("client"),
		p:       opts.Printer,
		w:       opts.World,
		ctx:     ctx,
		cancel:  cancel,
		reg:     command.NewRegistry(),
		state:   action.NewState(),
		arbiter: action.NewArbiter(),
		vars:    cmdline.NewVars(),
		hooks:   map[world.EventKind][]hook{},
		fired:   map[string]bool{},
		queue:   make(chan queued, queueSize),
	}

	aliases, err := command.NewAliases(cfg.Commands.Aliases)
	if err != nil {
		cancel()
		return nil, err
	}
	if cfg.Remote.Enabled {
		if c.remote, err = regexp.Compile(cfg.Remote.Pattern); err != nil {
			cancel()
			return nil, fmt.Errorf("remote pattern: %w", err)
		}
	}
	for _, key := range cfg.HookNames() {
		h, err := config.ParseHook(key)
		if err != nil {
			cancel()
			return nil, err
		}
		kind := world.EventKind(h.Event)
		c.hooks[kind] = append(c.hooks[kind], hook{key: key, line: cfg.Hooks[key], once: h.Once})
	}

	ropts := []behavior.Option{
		behavior.WithLogger(opts.Logger.Named("behavior")),
		behavior.WithReport(c.loopFailed),
	}
	if opts.Timing != nil {
		ropts = append(ropts, behavior.WithTiming(*opts.Timing))
	}
	c.runner = behavior.NewRunner(ctx, c.w, c.state, c.arbiter, ropts...)

	c.disp = command.NewDispatcher(c.reg,
		command.WithAliases(aliases),
		command.WithNonVanilla(cfg.Commands.EnableNonVanilla),
		command.WithMiddleware(command.Recover(), command.Logging(opts.Logger.Named("command"))),
	)
	env := &commands.Env{
		World:   c.w,
		State:   c.state,
		Arbiter: c.arbiter,
		Runner:  c.runner,
		Printer: c.p,
		Vars:    c.vars,
		Aliases: aliases,
		History: opts.History,
		Logger:  opts.Logger.Named("commands"),
		Version: opts.Version,
		Exec:    c.Exec,
		Report:  c.report,
		Go:      c.goSafe,
	}
	if err := commands.Register(c.reg, env); err != nil {
		cancel()
		return nil, err
	}

	enabled, unknown := plugin.Select(cfg.Plugins, opts.Plugins...)
	for _, n := range unknown {
		c.p.Warnf("Unknown plugin: '%s'", n)
	}
	c.host = plugin.NewHost(c.reg, opts.Logger.Named("plugin"), enabled...)
	c.rebuildCompletion()

	if opts.Transcript != nil {
		tr := opts.Transcript
		c.p.SetSink(func(l console.Level, msg string) {
			_ = tr.Output(l.String(), msg)
		})
	}
	return c, nil
}

// Completion returns the current autocomplete tree.
func (c *Client) Completion() *complete.Node { return c.tree.Load() }

// Dispatcher exposes the command table for inspection.
func (c *Client) Dispatcher() *command.Dispatcher { return c.disp }

func (c *Client) State() *action.State { return c.state }

func (c *Client) Vars() *cmdline.Vars { return c.vars }

func (c *Client) rebuildCompletion() {
	c.tree.Store(commands.CompletionTree(c.reg, c.disp.Aliases(), c.disp.NonVanilla()))
}

// errEnded stops the run group when the world event stream closes.
var errEnded = errors.New("world session ended")

// Run drives the session until the world ends or ctx is cancelled. Loops and
// background commands are stopped and awaited before it returns.
func (c *Client) Run(ctx context.Context, in LineReader) error {
	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()
	defer c.shutdown()

	c.runPlugins(plugin.PhaseBefore)
	if c.opts.Connect != nil {
		c.opts.Connect()
	}

	g, gctx := errgroup.WithContext(c.ctx)
	g.Go(func() error { return c.eventLoop(gctx) })
	g.Go(func() error { return c.commandLoop(gctx) })
	if in != nil {
		lines := make(chan string)
		readErr := make(chan error, 1)
		go readLines(in, lines, readErr, gctx.Done())
		g.Go(func() error { return c.inputLoop(gctx, lines, readErr) })
	}
	err := g.Wait()
	if errors.Is(err, errEnded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) shutdown() {
	c.cancel()
	c.state.Reset()
	c.wg.Wait()
	c.runner.Wait()
}

// readLines feeds out until input ends or done closes. A ReadLine that is
// blocked when done closes keeps the goroutine alive until it returns.
func readLines(in LineReader, out chan<- string, errc chan<- error, done <-chan struct{}) {
	for {
		line, err := in.ReadLine()
		if err != nil {
			errc <- err
			return
		}
		select {
		case out <- line:
		case <-done:
			return
		}
	}
}

func (c *Client) inputLoop(ctx context.Context, lines <-chan string, readErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, console.ErrInterrupt) {
				c.p.Infof("Interrupted, leaving")
				return c.w.Quit("interrupt")
			}
			c.log.Debug("input closed", zap.Error(err))
			return nil
		case line := <-lines:
			c.handleLine(line)
		}
	}
}

// handleLine treats a line starting with '.' as a command and anything else
// as chat. Commands run in line order; a command's long-running part goes to
// the background so input keeps flowing.
func (c *Client) handleLine(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}
	if c.opts.History != nil {
		if err := c.opts.History.Append(line, command.Operator.String()); err != nil {
			c.log.Debug("history append", zap.Error(err))
		}
	}
	if strings.HasPrefix(line, ".") {
		c.runLine(strings.TrimPrefix(line, "."), command.Operator)
		return
	}
	_ = c.opts.Transcript.Chat(c.selfName(), line)
	if err := c.w.Chat(line); err != nil {
		c.report(err)
	}
}

func (c *Client) selfName() string {
	if s, ok := c.w.Self(); ok {
		return s.Name
	}
	return ""
}

// runLine executes one command line on the calling goroutine.
func (c *Client) runLine(line string, origin command.Origin) {
	defer c.guard()
	if err := c.Exec(c.ctx, line, origin); err != nil {
		c.report(err)
	}
}

// enqueue hands a remote or hook line to the command loop, keeping the order
// lines arrived in.
func (c *Client) enqueue(line string, origin command.Origin) {
	select {
	case c.queue <- queued{line: line, origin: origin}:
	case <-c.ctx.Done():
	}
}

func (c *Client) commandLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-c.queue:
			c.runLine(q.line, q.origin)
		}
	}
}

// goSafe runs fn in a tracked goroutine under the crash guard.
func (c *Client) goSafe(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.guard()
		fn()
	}()
}

// Exec substitutes, tokenizes and dispatches one command line given without
// its leading dot.
func (c *Client) Exec(ctx context.Context, line string, origin command.Origin) error {
	_ = c.opts.Transcript.Command(line, origin.String())
	var pos *world.Vec3
	if s, ok := c.w.Self(); ok {
		p := s.Pos
		pos = &p
	}
	args := cmdline.Split(cmdline.Substitute(line, pos, c.vars))
	if len(args) == 0 {
		return nil
	}
	return c.disp.Dispatch(ctx, args, origin)
}

// report prints a command error as one warning line.
func (c *Client) report(err error) {
	var ue *command.UsageError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return
	case errors.As(err, &ue):
		c.p.Warnf("%s", ue.Error())
	case errors.Is(err, command.ErrUnknownCommand):
		c.p.Warnf("%v, see .help", err)
	case errors.Is(err, command.ErrPanic):
		c.p.Errorf("%v", err)
	default:
		c.p.Warnf("%v", err)
	}
	c.log.Debug("command failed", zap.Error(err))
}

func (c *Client) loopFailed(loop string, err error) {
	c.p.Warnf("%s stopped: %v", loop, err)
}

func (c *Client) runPlugins(phase plugin.Phase) {
	caps := plugin.Capabilities{
		Printer: c.p,
		Vars:    c.vars,
		State:   c.state,
		Arbiter: c.arbiter,
	}
	if phase == plugin.PhaseLoad {
		caps.World = c.w
	}
	results := c.host.Run(phase, caps)
	c.rebuildCompletion()
	for _, res := range results {
		switch {
		case res.Err != nil:
			c.p.Errorf("Plugin '%s' failed: %v", res.Name, res.Err)
		case phase == plugin.PhaseLoad:
			c.p.Successf("Loaded plugin: '%s'", res.Name)
		}
	}
}
