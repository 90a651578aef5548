package toolkit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"cadventory/internal/logging"
	"cadventory/internal/metrics"
)

// Commands holds argv templates for each operation. Element 0 is the program.
type Commands struct {
	Title  []string
	Tops   []string
	Tree   []string
	Exists []string
	Render []string
}

// DefaultCommands drives BRL-CAD's mged and rt.
func DefaultCommands() Commands {
	return Commands{
		Title:  []string{"{mged}", "-c", "{file}", "title"},
		Tops:   []string{"{mged}", "-c", "{file}", "tops"},
		Tree:   []string{"{mged}", "-c", "{file}", "lt", "{object}"},
		Exists: []string{"{mged}", "-c", "{file}", "exists", "{object}"},
		Render: []string{"{rt}", "-s{size}", "-o", "{output}", "{file}", "{object}"},
	}
}

// Timeouts bounds each kind of toolkit call.
type Timeouts struct {
	Metadata time.Duration
	Validate time.Duration
	Render   time.Duration
}

// DefaultTimeouts returns the stock per-call limits.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Metadata: 10 * time.Second,
		Validate: 10 * time.Second,
		Render:   30 * time.Second,
	}
}

// Config describes how to reach the toolkit.
type Config struct {
	MgedPath   string
	RtPath     string
	RenderSize int
	Commands   Commands
	Timeouts   Timeouts
}

// Toolkit issues templated commands through a Runner.
type Toolkit struct {
	cfg    Config
	runner Runner
}

// New returns a Toolkit. Zero-valued fields of cfg take defaults and a nil
// runner means ExecRunner.
func New(cfg Config, runner Runner) *Toolkit {
	if cfg.MgedPath == "" {
		cfg.MgedPath = "mged"
	}
	if cfg.RtPath == "" {
		cfg.RtPath = "rt"
	}
	if cfg.RenderSize <= 0 {
		cfg.RenderSize = 512
	}
	def := DefaultCommands()
	if len(cfg.Commands.Title) == 0 {
		cfg.Commands.Title = def.Title
	}
	if len(cfg.Commands.Tops) == 0 {
		cfg.Commands.Tops = def.Tops
	}
	if len(cfg.Commands.Tree) == 0 {
		cfg.Commands.Tree = def.Tree
	}
	if len(cfg.Commands.Exists) == 0 {
		cfg.Commands.Exists = def.Exists
	}
	if len(cfg.Commands.Render) == 0 {
		cfg.Commands.Render = def.Render
	}
	dt := DefaultTimeouts()
	if cfg.Timeouts.Metadata <= 0 {
		cfg.Timeouts.Metadata = dt.Metadata
	}
	if cfg.Timeouts.Validate <= 0 {
		cfg.Timeouts.Validate = dt.Validate
	}
	if cfg.Timeouts.Render <= 0 {
		cfg.Timeouts.Render = dt.Render
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Toolkit{cfg: cfg, runner: runner}
}

// Config returns the effective configuration.
func (t *Toolkit) Config() Config {
	return t.cfg
}

// expand substitutes placeholders in a template. Each argument is scanned
// once, so placeholder text inside a substituted value is left alone.
func (t *Toolkit) expand(tmpl []string, vars *strings.Replacer) []string {
	out := make([]string, len(tmpl))
	for i, arg := range tmpl {
		out[i] = vars.Replace(arg)
	}
	return out
}

func (t *Toolkit) vars(file, object, output string) *strings.Replacer {
	return strings.NewReplacer(
		"{mged}", t.cfg.MgedPath,
		"{rt}", t.cfg.RtPath,
		"{file}", file,
		"{object}", object,
		"{output}", output,
		"{size}", strconv.Itoa(t.cfg.RenderSize),
	)
}

func (t *Toolkit) run(ctx context.Context, op string, timeout time.Duration, argv []string) (Output, error) {
	out, err := t.runner.Run(ctx, timeout, argv[0], argv[1:]...)

	result := "ok"
	switch {
	case errors.Is(err, ErrTimedOut):
		result = "timeout"
	case errors.Is(err, ErrNonZeroExit):
		result = "exit"
	case errors.Is(err, ErrSpawnFailed):
		result = "spawn"
	case err != nil:
		result = "exit"
	}
	metrics.ToolkitCallsTotal.WithLabelValues(op, result).Inc()
	metrics.ToolkitCallDuration.WithLabelValues(op).Observe(out.Duration.Seconds())

	if err != nil {
		logging.Debug("Toolkit %s failed (%s): %v", op, strings.Join(argv, " "), err)
	}
	return out, err
}

// Title asks the toolkit for the database title of file.
func (t *Toolkit) Title(ctx context.Context, file string) (Output, error) {
	argv := t.expand(t.cfg.Commands.Title, t.vars(file, "", ""))
	return t.run(ctx, "title", t.cfg.Timeouts.Metadata, argv)
}

// TopObjects lists the top-level objects of file.
func (t *Toolkit) TopObjects(ctx context.Context, file string) (Output, error) {
	argv := t.expand(t.cfg.Commands.Tops, t.vars(file, "", ""))
	return t.run(ctx, "tops", t.cfg.Timeouts.Metadata, argv)
}

// Tree lists the direct members of the combination object in file. Members
// are printed as {op name} pairs; a primitive exits non-zero.
func (t *Toolkit) Tree(ctx context.Context, file, object string) (Output, error) {
	argv := t.expand(t.cfg.Commands.Tree, t.vars(file, object, ""))
	return t.run(ctx, "tree", t.cfg.Timeouts.Metadata, argv)
}

// ObjectExists reports whether object is present in file. A non-zero exit is
// a clean "no"; timeouts and spawn failures are returned as errors.
func (t *Toolkit) ObjectExists(ctx context.Context, file, object string) (bool, error) {
	argv := t.expand(t.cfg.Commands.Exists, t.vars(file, object, ""))
	_, err := t.run(ctx, "exists", t.cfg.Timeouts.Validate, argv)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNonZeroExit) {
		return false, nil
	}
	return false, err
}

// Render raytraces object from file into output.
func (t *Toolkit) Render(ctx context.Context, file, object, output string) error {
	argv := t.expand(t.cfg.Commands.Render, t.vars(file, object, output))
	_, err := t.run(ctx, "render", t.cfg.Timeouts.Render, argv)
	return err
}

// Check verifies that the programs named by the templates can be found.
func (t *Toolkit) Check(ctx context.Context) error {
	seen := make(map[string]bool)
	var errs []error
	for _, tmpl := range [][]string{t.cfg.Commands.Title, t.cfg.Commands.Tops, t.cfg.Commands.Tree, t.cfg.Commands.Exists, t.cfg.Commands.Render} {
		if err := ctx.Err(); err != nil {
			return err
		}
		prog := t.expand(tmpl[:1], t.vars("", "", ""))[0]
		if seen[prog] {
			continue
		}
		seen[prog] = true
		if _, err := exec.LookPath(prog); err != nil {
			errs = append(errs, fmt.Errorf("toolkit program %q: %w", prog, err))
		}
	}
	return errors.Join(errs...)
}

// ParseTemplate splits a configured command line into an argv template.
func ParseTemplate(s string) []string {
	return strings.Fields(s)
}
