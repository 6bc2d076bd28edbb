package compiler

import (
	"strconv"
	"strings"
)

const (
	FieldDelimiter = "|"
	ArgDelimiter   = ";"
	maxFields      = 7
)

// StepDescriptor is one step line split into its positional fields:
//
//	action|arg1;arg2|description|fail_on_error|name|screenshot_on_fail|screenshot_on_pass
type StepDescriptor struct {
	Line             int      `json:"line,omitempty"`
	Raw              string   `json:"raw"`
	Action           string   `json:"action"`
	ElementID        string   `json:"element_id,omitempty"`
	Args             []string `json:"args,omitempty"`
	Description      string   `json:"description,omitempty"`
	FailOnError      *bool    `json:"fail_on_error,omitempty"`
	Name             string   `json:"name,omitempty"`
	ScreenshotOnFail *bool    `json:"screenshot_on_fail,omitempty"`
	ScreenshotOnPass *bool    `json:"screenshot_on_pass,omitempty"`
}

// Arg returns argument i, or "" when it was not supplied.
func (d StepDescriptor) Arg(i int) string {
	if i < 0 || i >= len(d.Args) {
		return ""
	}
	return d.Args[i]
}

// SplitLine splits a raw step line. Missing trailing fields stay unset; nothing
// here can fail. Delimiters cannot be escaped.
func SplitLine(line string) StepDescriptor {
	fields := strings.Split(line, FieldDelimiter)
	d := StepDescriptor{
		Raw:    line,
		Action: fields[0],
	}
	if len(fields) >= 2 {
		d.Args = strings.Split(fields[1], ArgDelimiter)
	}
	if len(fields) >= 3 {
		d.Description = fields[2]
	}
	if len(fields) >= 4 {
		d.FailOnError = parseFlag(fields[3])
	}
	if len(fields) >= 5 {
		d.Name = fields[4]
	}
	if len(fields) >= 6 {
		d.ScreenshotOnFail = parseFlag(fields[5])
	}
	if len(fields) >= maxFields {
		d.ScreenshotOnPass = parseFlag(fields[6])
	}
	if spec, ok := lookupAction(d.Action); ok && spec.locatorArg >= 0 {
		d.ElementID = d.Arg(spec.locatorArg)
	}
	return d
}

func parseFlag(s string) *bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &v
}
