// Command dashboard-shell is an interactive console for the robot's
// supervisory dashboard channel. It connects, validates the greeting
// and forwards commands line by line, which is useful for lab
// debugging without deploying a control script.
//
// Usage:
//
//	dashboard-shell -robot 192.168.56.101
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/urcontrol/urcl-go/pkg/config"
	"github.com/urcontrol/urcl-go/pkg/dashboard"
)

func main() {
	log.SetFlags(log.Ltime)

	robotFlag := flag.String("robot", config.DefaultRobotAddr, "robot controller address")
	flag.Parse()

	if err := run(*robotFlag); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func run(robotAddr string) error {
	client := dashboard.NewClient(robotAddr, dashboard.ClientConfig{})
	if err := client.Connect(context.Background()); err != nil {
		return err
	}
	defer client.Close()
	log.Printf("connected to %s", robotAddr)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "dashboard> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("create readline: %w", err)
	}
	defer rl.Close()

	printHelp(rl)

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			// EOF
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			printHelp(rl)

		case "stop":
			report(rl, "stop", client.Stop())

		case "power-on":
			report(rl, "power on", client.PowerOn())

		case "power-off":
			report(rl, "power off", client.PowerOff())

		case "brake-release":
			report(rl, "brake release", client.BrakeRelease())

		case "raw":
			if len(args) == 0 {
				fmt.Fprintln(rl.Stdout(), "usage: raw <dashboard command>")
				continue
			}
			resp, err := client.Raw(strings.Join(args, " "))
			if err != nil {
				fmt.Fprintf(rl.Stdout(), "error: %v\n", err)
				continue
			}
			fmt.Fprintln(rl.Stdout(), resp)

		case "exit", "quit":
			return nil

		default:
			fmt.Fprintf(rl.Stdout(), "unknown command %q, try help\n", cmd)
		}
	}
}

func report(rl *readline.Instance, name string, err error) {
	if err != nil {
		fmt.Fprintf(rl.Stdout(), "%s failed: %v\n", name, err)
		return
	}
	fmt.Fprintf(rl.Stdout(), "%s ok\n", name)
}

func printHelp(rl *readline.Instance) {
	fmt.Fprint(rl.Stdout(), `Commands:
  stop            halt the running program
  power-on        power on the arm
  power-off       power off the arm
  brake-release   release the brakes
  raw <cmd>       send a raw dashboard command
  help            show this help
  exit            quit
`)
}
