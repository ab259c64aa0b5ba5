// Package script handles the control script artifact: loading the
// program template, substituting the callback address, checking its
// declared recipes against the negotiated ones and deploying it to the
// controller's program port.
//
// Deploying a program implicitly starts it; the running script then
// dials back to the reverse channel, which is what confirms execution.
package script

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urcontrol/urcl-go/pkg/rtde"
)

// Constants for deployment.
const (
	// DefaultProgramPort is the controller port that accepts program text.
	DefaultProgramPort = 30002

	// DefaultDeployTimeout bounds the deployment write.
	DefaultDeployTimeout = 10 * time.Second
)

// Template placeholders. The rendered script needs to know where this
// client's reverse channel listens.
const (
	placeholderServerIP   = "{{SERVER_IP}}"
	placeholderServerPort = "{{SERVER_PORT}}"
)

// Recipe declaration directives inside the template. The deployed
// script declares the field layout it expects; a mismatch with the
// negotiated recipes is a deployment error, not a runtime error.
const (
	directiveInputRecipe  = "# input_recipe:"
	directiveOutputRecipe = "# output_recipe:"
)

// Template is a loaded control script template.
type Template struct {
	name string
	raw  string
}

// LoadTemplate reads a script template from path.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("load script template: %w", err)
	}
	return Template{name: path, raw: string(data)}, nil
}

// NewTemplate creates a template from in-memory program text.
func NewTemplate(name, raw string) Template {
	return Template{name: name, raw: raw}
}

// Name returns the template's source name.
func (t Template) Name() string { return t.name }

// Render substitutes the reverse channel address into the template.
// Both placeholders must be present; a template that never dials back
// would leave the session waiting until its readiness timeout.
func (t Template) Render(host string, port int) (string, error) {
	if !strings.Contains(t.raw, placeholderServerIP) {
		return "", fmt.Errorf("template %s: missing %s placeholder", t.name, placeholderServerIP)
	}
	if !strings.Contains(t.raw, placeholderServerPort) {
		return "", fmt.Errorf("template %s: missing %s placeholder", t.name, placeholderServerPort)
	}

	program := strings.ReplaceAll(t.raw, placeholderServerIP, host)
	program = strings.ReplaceAll(program, placeholderServerPort, strconv.Itoa(port))
	if !strings.HasSuffix(program, "\n") {
		program += "\n"
	}
	return program, nil
}

// DeclaredRecipes parses the recipe directives from the template.
// Missing directives return empty recipes, meaning the script declares
// nothing and any negotiated recipe is acceptable.
func (t Template) DeclaredRecipes() (input, output rtde.Recipe) {
	for _, line := range strings.Split(t.raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, directiveInputRecipe):
			input = parseDirective(line, directiveInputRecipe)
		case strings.HasPrefix(line, directiveOutputRecipe):
			output = parseDirective(line, directiveOutputRecipe)
		}
	}
	return input, output
}

func parseDirective(line, directive string) rtde.Recipe {
	rest := strings.TrimSpace(strings.TrimPrefix(line, directive))
	if rest == "" {
		return rtde.Recipe{}
	}
	fields := strings.Split(rest, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return rtde.Recipe{Fields: fields}
}

// ValidateRecipes checks the negotiated recipes against the template's
// declarations. Field names and order must match exactly.
func (t Template) ValidateRecipes(input, output rtde.Recipe) error {
	declaredIn, declaredOut := t.DeclaredRecipes()
	if err := matchRecipe("input", declaredIn, input); err != nil {
		return err
	}
	return matchRecipe("output", declaredOut, output)
}

func matchRecipe(direction string, declared, negotiated rtde.Recipe) error {
	if len(declared.Fields) == 0 {
		return nil
	}
	if len(declared.Fields) != len(negotiated.Fields) {
		return fmt.Errorf("%s recipe mismatch: script declares %d fields, recipe has %d",
			direction, len(declared.Fields), len(negotiated.Fields))
	}
	for i := range declared.Fields {
		if declared.Fields[i] != negotiated.Fields[i] {
			return fmt.Errorf("%s recipe mismatch at field %d: script declares %q, recipe has %q",
				direction, i, declared.Fields[i], negotiated.Fields[i])
		}
	}
	return nil
}

// Deploy sends the rendered program to the controller's program port.
// If addr has no port, the default program port is appended. The
// controller starts executing the program as soon as it arrives.
func Deploy(ctx context.Context, addr, program string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultProgramPort))
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDeployTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial program port: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	if _, err := conn.Write([]byte(program)); err != nil {
		return fmt.Errorf("send program: %w", err)
	}
	return nil
}
