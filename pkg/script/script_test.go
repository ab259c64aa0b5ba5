package script

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/urcontrol/urcl-go/pkg/rtde"
)

const sampleTemplate = `# control program
# input_recipe: input_int_register_0, input_double_register_0
# output_recipe: actual_q, actual_TCP_force
def external_control():
  socket_open("{{SERVER_IP}}", {{SERVER_PORT}}, "reverse_socket")
end`

func TestRender(t *testing.T) {
	tmpl := NewTemplate("external_control.urscript", sampleTemplate)

	program, err := tmpl.Render("192.168.56.1", 50001)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(program, `socket_open("192.168.56.1", 50001, "reverse_socket")`) {
		t.Errorf("placeholders not substituted:\n%s", program)
	}
	if strings.Contains(program, "{{") {
		t.Error("unreplaced placeholder remains")
	}
	if !strings.HasSuffix(program, "\n") {
		t.Error("rendered program must end with newline")
	}
}

func TestRenderMissingPlaceholder(t *testing.T) {
	tmpl := NewTemplate("bad", "def f():\nend\n")
	if _, err := tmpl.Render("10.0.0.1", 50001); err == nil {
		t.Error("template without placeholders accepted")
	}
}

func TestDeclaredRecipes(t *testing.T) {
	tmpl := NewTemplate("t", sampleTemplate)

	input, output := tmpl.DeclaredRecipes()
	if got := input.String(); got != "input_int_register_0,input_double_register_0" {
		t.Errorf("input = %q", got)
	}
	if got := output.String(); got != "actual_q,actual_TCP_force" {
		t.Errorf("output = %q", got)
	}
}

func TestValidateRecipes(t *testing.T) {
	tmpl := NewTemplate("t", sampleTemplate)

	input := rtde.Recipe{Fields: []string{"input_int_register_0", "input_double_register_0"}}
	output := rtde.Recipe{Fields: []string{"actual_q", "actual_TCP_force"}}
	if err := tmpl.ValidateRecipes(input, output); err != nil {
		t.Errorf("matching recipes rejected: %v", err)
	}

	// Wrong field name.
	badOutput := rtde.Recipe{Fields: []string{"actual_q", "target_q"}}
	if err := tmpl.ValidateRecipes(input, badOutput); err == nil {
		t.Error("mismatched output recipe accepted")
	}

	// Wrong order is also a mismatch.
	swapped := rtde.Recipe{Fields: []string{"actual_TCP_force", "actual_q"}}
	if err := tmpl.ValidateRecipes(input, swapped); err == nil {
		t.Error("reordered output recipe accepted")
	}

	// A template with no directives accepts anything.
	bare := NewTemplate("bare", `socket_open("{{SERVER_IP}}", {{SERVER_PORT}})`)
	if err := bare.ValidateRecipes(input, output); err != nil {
		t.Errorf("directive-free template rejected recipes: %v", err)
	}
}

func TestDeploy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- string(data)
	}()

	program := "def external_control():\nend\n"
	if err := Deploy(context.Background(), listener.Addr().String(), program); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	if got := <-received; got != program {
		t.Errorf("deployed program = %q, want %q", got, program)
	}
}
