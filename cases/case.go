// Package cases loads case definitions from YAML or JSON and compiles their steps.
package cases

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/surajsub/sapgui-step-dsl/compiler"
	"github.com/surajsub/sapgui-step-dsl/models"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDateFormat   = "%m/%d/%Y"
	DefaultExplicitWait = 0.25
	DefaultSystem       = "1.2 ERP - RQ2"
	DefaultOwner        = "Business Process Owner"
	DefaultITOwner      = "Technical Owner"
)

// Case is one automated scenario: its metadata, data and compiled steps.
type Case struct {
	Name                 string               `json:"name"`
	Description          string               `json:"description,omitempty"`
	BusinessProcessOwner string               `json:"business_process_owner"`
	ITOwner              string               `json:"it_owner"`
	DocumentationLink    string               `json:"documentation_link,omitempty"`
	BasePath             string               `json:"base_path,omitempty"`
	LogConfig            models.LoggingConfig `json:"log_config"`
	DateFormat           string               `json:"date_format"`
	ExplicitWait         float64              `json:"explicit_wait"`
	ScreenShotOnPass     bool                 `json:"screenshot_on_pass"`
	ScreenShotOnFail     bool                 `json:"screenshot_on_fail"`
	FailOnError          bool                 `json:"fail_on_error"`
	ExitOnFail           bool                 `json:"exit_on_fail"`
	CloseSAPOnCleanup    bool                 `json:"close_sap_on_cleanup"`
	System               string               `json:"system"`
	Data                 map[string]any       `json:"data,omitempty"`

	// StepLines are the raw step lines; Steps is filled by Compile.
	StepLines []string              `json:"step_lines,omitempty"`
	Steps     []compiler.StepRecord `json:"steps,omitempty"`
	Status    models.ResultCase     `json:"status"`
}

// New returns a case with the framework defaults.
func New() *Case {
	return &Case{
		Name:                 "test_" + time.Now().Format("01022006_150405"),
		BusinessProcessOwner: DefaultOwner,
		ITOwner:              DefaultOwner,
		DateFormat:           DefaultDateFormat,
		ExplicitWait:         DefaultExplicitWait,
		FailOnError:          true,
		ExitOnFail:           true,
		CloseSAPOnCleanup:    true,
		System:               DefaultSystem,
		Data:                 map[string]any{},
	}
}

// yamlCase is the `Case:` block of a case file. Pointer fields tell absent keys apart
// from zero values.
type yamlCase struct {
	Name                 *string               `yaml:"Name"`
	Description          *string               `yaml:"Description"`
	BusinessProcessOwner *string               `yaml:"BusinessProcessOwner"`
	ITOwner              *string               `yaml:"ITOwner"`
	DocumentationLink    *string               `yaml:"DocumentationLink"`
	BasePath             *string               `yaml:"BasePath"`
	LogConfig            *models.LoggingConfig `yaml:"LogConfig"`
	DateFormat           *string               `yaml:"DateFormat"`
	ExplicitWait         *float64              `yaml:"ExplicitWait"`
	ScreenShotOnPass     *bool                 `yaml:"ScreenShotOnPass"`
	ScreenShotOnFail     *bool                 `yaml:"ScreenShotOnFail"`
	FailOnError          *bool                 `yaml:"FailOnError"`
	ExitOnError          *bool                 `yaml:"ExitOnError"`
	CloseSAPOnCleanup    *bool                 `yaml:"CloseSAPOnCleanup"`
	System               *string               `yaml:"System"`
	Steps                *string               `yaml:"Steps"`
	Data                 map[string]any        `yaml:"Data"`
}

type yamlFile struct {
	Case *yamlCase `yaml:"Case"`
}

// LoadYAML reads and parses a YAML case file.
func LoadYAML(path string) (*Case, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file %s: %w", path, err)
	}
	c, err := ParseYAML(b)
	if err != nil {
		return nil, fmt.Errorf("case file %s: %w", path, err)
	}
	return c, nil
}

// ParseYAML parses a YAML document with a top-level Case key. Steps is a multi-line
// string with one step per line.
func ParseYAML(b []byte) (*Case, error) {
	var doc yamlFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse case yaml: %w", err)
	}
	if doc.Case == nil {
		return nil, fmt.Errorf("case yaml has no top-level Case key")
	}

	y := doc.Case
	c := New()
	setString(&c.Name, y.Name)
	setString(&c.Description, y.Description)
	setString(&c.BusinessProcessOwner, y.BusinessProcessOwner)
	setString(&c.ITOwner, y.ITOwner)
	setString(&c.DocumentationLink, y.DocumentationLink)
	setString(&c.BasePath, y.BasePath)
	setString(&c.DateFormat, y.DateFormat)
	setString(&c.System, y.System)
	setBool(&c.ScreenShotOnPass, y.ScreenShotOnPass)
	setBool(&c.ScreenShotOnFail, y.ScreenShotOnFail)
	setBool(&c.FailOnError, y.FailOnError)
	setBool(&c.ExitOnFail, y.ExitOnError)
	setBool(&c.CloseSAPOnCleanup, y.CloseSAPOnCleanup)
	if y.ExplicitWait != nil {
		c.ExplicitWait = *y.ExplicitWait
	}
	if y.LogConfig != nil {
		c.LogConfig = *y.LogConfig
	}
	if y.Steps != nil {
		c.StepLines = strings.Split(*y.Steps, "\n")
	}
	if y.Data != nil {
		c.Data = y.Data
	}
	return c, nil
}

// ParseJSON parses the flat JSON case layout. The whole document doubles as the
// case data, and an optional "steps" key holds newline separated step lines.
func ParseJSON(b []byte) (*Case, error) {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to parse case json: %w", err)
	}

	c := New()
	c.Name = stringOr(data, "case_name", c.Name)
	c.Description = stringOr(data, "description", "")
	c.BusinessProcessOwner = stringOr(data, "business_owner", DefaultOwner)
	c.ITOwner = stringOr(data, "it_owner", DefaultITOwner)
	c.DocumentationLink = stringOr(data, "doc_link", "")
	c.BasePath = stringOr(data, "case_path", "")
	c.DateFormat = stringOr(data, "date_format", DefaultDateFormat)
	c.ExplicitWait = floatOr(data, "explicit_wait", DefaultExplicitWait)
	c.ScreenShotOnPass = boolOr(data, "screenshot_on_pass", false)
	c.ScreenShotOnFail = boolOr(data, "screenshot_on_fail", false)
	c.FailOnError = boolOr(data, "fail_on_error", true)
	c.ExitOnFail = boolOr(data, "exit_on_fail", true)
	c.CloseSAPOnCleanup = boolOr(data, "close_sap_on_cleanup", true)
	c.System = stringOr(data, "system", "")
	if steps := stringOr(data, "steps", ""); steps != "" {
		c.StepLines = strings.Split(steps, "\n")
	}
	c.Data = data
	return c, nil
}

// Compile runs the compiler over the case's step lines and stores the records. The
// program is returned even when err is non-nil.
func Compile(c *Case, comp *compiler.Compiler) (*compiler.Program, error) {
	prog, err := comp.CompileSteps(c.StepLines)
	c.Steps = prog.Records
	if err != nil {
		return prog, fmt.Errorf("case %s: %w", c.Name, err)
	}
	return prog, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func stringOr(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

func floatOr(m map[string]any, key string, def float64) float64 {
	if f, ok := m[key].(float64); ok {
		return f
	}
	return def
}

func boolOr(m map[string]any, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}
