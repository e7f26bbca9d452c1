// Package pipeline runs research pipelines: gather synthetic context, then call the
// text service once per step, feeding each step's output to the next when asked.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"text/template"
	"time"

	"github.com/kiranshivaraju/researchmate/internal/datasource"
	"github.com/kiranshivaraju/researchmate/pkg/models"
)

// DefaultPipeline is used when a request names no pipeline.
const DefaultPipeline = "market"

// ErrUnknownPipeline is returned for pipeline names that are not registered.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// Step is one text service call. Template is a text/template rendered with PromptData.
type Step struct {
	Name      string
	Template  string
	UsesPrior bool
	Params    models.GenerationParams
}

// Gathered is the context assembled before the first step runs.
type Gathered struct {
	// Subject is the pipeline-specific focus derived from the input (ticker, keywords).
	Subject  string
	Sections []datasource.Section
}

// Pipeline is an ordered list of steps over a shared context block.
type Pipeline struct {
	Name   string
	Gather func(Request) Gathered
	Steps  []Step
}

// Request is one pipeline invocation.
type Request struct {
	Input    string
	Focus    string
	Pipeline string
}

// PromptData is what step templates see. Prior is empty unless the step uses
// the immediately preceding step's output.
type PromptData struct {
	Input   string
	Focus   string
	Subject string
	Context string
	Prior   string
}

// StepError reports which step of which pipeline failed.
type StepError struct {
	Pipeline string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline %s: step %s: %v", e.Pipeline, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type compiledStep struct {
	Step
	tmpl *template.Template
}

type compiled struct {
	pipeline Pipeline
	steps    []compiledStep
}

// Composer holds the registered pipelines and the text generator they call.
type Composer struct {
	gen       models.TextGenerator
	defaults  models.GenerationParams
	pipelines map[string]*compiled
}

// NewComposer parses every step template up front so a bad template fails at startup.
func NewComposer(gen models.TextGenerator, defaults models.GenerationParams, pipelines ...Pipeline) (*Composer, error) {
	c := &Composer{
		gen:       gen,
		defaults:  defaults,
		pipelines: make(map[string]*compiled, len(pipelines)),
	}

	for _, p := range pipelines {
		if p.Name == "" {
			return nil, errors.New("pipeline name is required")
		}
		if len(p.Steps) == 0 {
			return nil, fmt.Errorf("pipeline %s has no steps", p.Name)
		}
		if _, dup := c.pipelines[p.Name]; dup {
			return nil, fmt.Errorf("pipeline %s registered twice", p.Name)
		}

		cp := &compiled{pipeline: p}
		for _, s := range p.Steps {
			tmpl, err := template.New(p.Name + "/" + s.Name).Option("missingkey=error").Parse(s.Template)
			if err != nil {
				return nil, fmt.Errorf("parsing template for %s/%s: %w", p.Name, s.Name, err)
			}
			cp.steps = append(cp.steps, compiledStep{Step: s, tmpl: tmpl})
		}
		c.pipelines[p.Name] = cp
	}

	return c, nil
}

// Has reports whether name (or the default, when empty) is registered.
func (c *Composer) Has(name string) bool {
	if name == "" {
		name = DefaultPipeline
	}
	_, ok := c.pipelines[name]
	return ok
}

// Names returns registered pipeline names in sorted order.
func (c *Composer) Names() []string {
	names := make([]string, 0, len(c.pipelines))
	for n := range c.pipelines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the named pipeline and returns the last step's output.
func (c *Composer) Run(ctx context.Context, req Request) (string, error) {
	name := req.Pipeline
	if name == "" {
		name = DefaultPipeline
	}
	cp, ok := c.pipelines[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}

	var gathered Gathered
	if cp.pipeline.Gather != nil {
		gathered = cp.pipeline.Gather(req)
	}
	data := PromptData{
		Input:   req.Input,
		Focus:   req.Focus,
		Subject: gathered.Subject,
		Context: datasource.Render(gathered.Sections...),
	}

	var prev string
	for _, s := range cp.steps {
		data.Prior = ""
		if s.UsesPrior {
			data.Prior = prev
		}

		var buf bytes.Buffer
		if err := s.tmpl.Execute(&buf, data); err != nil {
			return "", &StepError{Pipeline: name, Step: s.Name, Err: fmt.Errorf("rendering prompt: %w", err)}
		}

		start := time.Now()
		out, err := c.gen.Complete(ctx, buf.String(), s.Params.WithDefaults(c.defaults))
		if err != nil {
			return "", &StepError{Pipeline: name, Step: s.Name, Err: err}
		}
		slog.Debug("pipeline step complete",
			"pipeline", name,
			"step", s.Name,
			"provider", c.gen.Name(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		prev = out
	}

	return prev, nil
}
