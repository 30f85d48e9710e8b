// Package scenario describes and replays scripted view registry sessions.
//
// A scenario is a YAML file holding an HTML document, the registries and
// references bound to it, and a list of steps (state changes, property
// writes, native events, DOM removals, scrolling, waiting). Replaying it
// produces a trace of every message published on the event channel.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	ui "github.com/atdiar/viewregistry"
)

// Scenario is the decoded form of a scenario file.
type Scenario struct {
	Name string `yaml:"name"`

	// Document is the path of an HTML file, relative to the scenario file.
	// Markup holds inline HTML instead.
	Document string `yaml:"document"`
	Markup   string `yaml:"markup"`

	ComplexCompression bool     `yaml:"complex_compression"`
	Viewport           *ui.Rect `yaml:"viewport"`

	Registries []Registry  `yaml:"registries"`
	References []Reference `yaml:"references"`
	Steps      []Step      `yaml:"steps"`

	dir string
}

// Registry declares a view registry. Name is how steps and other registries
// refer to it; it defaults to the namespace, then to the selector.
type Registry struct {
	Name      string `yaml:"name"`
	Selector  string `yaml:"selector"`
	Namespace string `yaml:"namespace"`
	Parent    string `yaml:"parent"`

	States       []string          `yaml:"states"`
	InitialState string            `yaml:"initial_state"`
	Reactions    map[string]string `yaml:"reactions"`
	// Reflexes maps a peer registry name to peer state -> own state.
	Reflexes map[string]map[string]string `yaml:"reflexes"`
	Guards   map[string]Guard             `yaml:"guards"`

	Properties ui.Schema      `yaml:"properties"`
	References map[string]any `yaml:"references"`
	Monitor    bool           `yaml:"monitor"`
	Scroll     bool           `yaml:"scroll"`
	Rect       *ui.Rect       `yaml:"rect"`
}

// Guard is a pre-state hook. A guard with a delay holds the transition for
// that long; a denying guard vetoes it.
type Guard struct {
	Delay time.Duration `yaml:"delay"`
	Deny  bool          `yaml:"deny"`
}

// Reference declares a named element reference whose native events are
// forwarded to channel topics.
type Reference struct {
	Name     string            `yaml:"name"`
	Selector string            `yaml:"selector"`
	Forward  map[string]string `yaml:"forward"` // event -> topic
}

// Step is one action of a scenario. Exactly one action field must be set.
type Step struct {
	Registry string `yaml:"registry"`

	State    string        `yaml:"state"`
	Property string        `yaml:"property"`
	Value    any           `yaml:"value"`
	Delete   string        `yaml:"delete"`
	Trigger  string        `yaml:"trigger"`
	Event    string        `yaml:"event"`
	Remove   string        `yaml:"remove"`
	Scroll   *float64      `yaml:"scroll"`
	Wait     time.Duration `yaml:"wait"`
	Expect   string        `yaml:"expect"`
}

// Step kinds.
const (
	StepState    = "state"
	StepProperty = "property"
	StepDelete   = "delete"
	StepTrigger  = "trigger"
	StepRemove   = "remove"
	StepScroll   = "scroll"
	StepWait     = "wait"
	StepExpect   = "expect"
)

// Kind returns the action of the step, or an empty string when zero or
// several actions are set.
func (s Step) Kind() string {
	var kinds []string
	if s.State != "" {
		kinds = append(kinds, StepState)
	}
	if s.Property != "" {
		kinds = append(kinds, StepProperty)
	}
	if s.Delete != "" {
		kinds = append(kinds, StepDelete)
	}
	if s.Trigger != "" {
		kinds = append(kinds, StepTrigger)
	}
	if s.Remove != "" {
		kinds = append(kinds, StepRemove)
	}
	if s.Scroll != nil {
		kinds = append(kinds, StepScroll)
	}
	if s.Wait > 0 {
		kinds = append(kinds, StepWait)
	}
	if s.Expect != "" {
		kinds = append(kinds, StepExpect)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (r Registry) key() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Namespace != "":
		return r.Namespace
	}
	return r.Selector
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ui.ErrConfiguration, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DocumentPath returns the path of the scenario document, resolved against the
// directory of the scenario file. It is empty for inline markup.
func (s *Scenario) DocumentPath() string {
	if s.Document == "" || filepath.IsAbs(s.Document) {
		return s.Document
	}
	return filepath.Join(s.dir, s.Document)
}

// Validate checks the structure of the scenario. Everything that depends on
// the document (selectors resolving, states existing) is checked by Run.
func (s *Scenario) Validate() error {
	var errs *multierror.Error

	if (s.Document == "") == (s.Markup == "") {
		errs = multierror.Append(errs, fmt.Errorf("exactly one of document and markup must be set"))
	}

	known := make(map[string]bool, len(s.Registries))
	for i, r := range s.Registries {
		key := r.key()
		if strings.TrimSpace(r.Selector) == "" {
			errs = multierror.Append(errs, fmt.Errorf("registry #%d: selector is required", i))
		}
		if known[key] {
			errs = multierror.Append(errs, fmt.Errorf("registry %q is declared twice", key))
		}
		if r.Parent != "" && !known[r.Parent] {
			errs = multierror.Append(errs, fmt.Errorf("registry %q: parent %q must be declared before it", key, r.Parent))
		}
		for peer := range r.Reflexes {
			if !known[peer] {
				errs = multierror.Append(errs, fmt.Errorf("registry %q: reflex peer %q must be declared before it", key, peer))
			}
		}
		known[key] = true
	}

	for i, ref := range s.References {
		if ref.Name == "" || strings.TrimSpace(ref.Selector) == "" {
			errs = multierror.Append(errs, fmt.Errorf("reference #%d: name and selector are required", i))
		}
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			errs = multierror.Append(errs, fmt.Errorf("step #%d: exactly one action must be set", i+1))
			continue
		}
		switch kind {
		case StepState, StepProperty, StepDelete, StepExpect:
			if !known[step.Registry] {
				errs = multierror.Append(errs, fmt.Errorf("step #%d: unknown registry %q", i+1, step.Registry))
			}
		}
	}

	if errs.ErrorOrNil() == nil {
		return nil
	}
	errs.ErrorFormat = func(list []error) string {
		msgs := make([]string, 0, len(list))
		for _, err := range list {
			msgs = append(msgs, err.Error())
		}
		return strings.Join(msgs, "; ")
	}
	return fmt.Errorf("%w: %v", ui.ErrConfiguration, errs)
}
