// Command force-mode runs a force-mode session against a robot
// controller: it connects, deploys the control script, waits for the
// script to confirm execution, holds force mode with the configured
// parameters while keeping the connection alive, then ends the mode
// and exits.
//
// Usage:
//
//	force-mode [flags]
//
// Flags:
//
//	-robot      robot controller address (overrides config)
//	-config     YAML configuration file
//	-duration   how long to hold force mode (0 = until interrupted)
//	-discover   find the robot via mDNS instead of -robot
//	-serial     with -discover, pick the robot with this serial
//	-script     control script template file
//	-log-file   session event log file
//
// The exit code is 0 when the full sequence completes and 1 when any
// step fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urcontrol/urcl-go/pkg/config"
	"github.com/urcontrol/urcl-go/pkg/discovery"
	urlog "github.com/urcontrol/urcl-go/pkg/log"
	"github.com/urcontrol/urcl-go/pkg/rtde"
	"github.com/urcontrol/urcl-go/pkg/script"
	"github.com/urcontrol/urcl-go/pkg/session"
)

// defaultProgram is used when no script template file is configured.
// It opens the reverse channel back to this client and services the
// command stream.
const defaultProgram = `# output_recipe: actual_q
# input_recipe: input_int_register_0
def external_control():
  socket_open("{{SERVER_IP}}", {{SERVER_PORT}})
  keepalive = 1
  while keepalive > 0:
    keepalive = read_command()
  end
end
`

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	robotFlag := flag.String("robot", "", "robot controller address")
	configFlag := flag.String("config", "", "YAML configuration file")
	durationFlag := flag.Duration("duration", -1, "how long to hold force mode (0 = until interrupted)")
	discoverFlag := flag.Bool("discover", false, "find the robot via mDNS")
	serialFlag := flag.String("serial", "", "with -discover, pick the robot with this serial")
	scriptFlag := flag.String("script", "", "control script template file")
	logFileFlag := flag.String("log-file", "", "session event log file")
	flag.Parse()

	if err := run(*robotFlag, *configFlag, *durationFlag, *discoverFlag, *serialFlag, *scriptFlag, *logFileFlag); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

func run(robotAddr, configPath string, duration time.Duration, discover bool, serial, scriptPath, logFile string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if robotAddr != "" {
		cfg.RobotAddr = robotAddr
	}
	if duration >= 0 {
		cfg.Duration = duration
	}
	if scriptPath != "" {
		cfg.ScriptPath = scriptPath
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("interrupted, shutting down")
		cancel()
	}()

	if discover {
		addr, err := discoverRobot(ctx, serial)
		if err != nil {
			return err
		}
		log.Printf("discovered robot at %s", addr)
		cfg.RobotAddr = addr
	}

	sessionConfig, err := buildSessionConfig(cfg)
	if err != nil {
		return err
	}
	if closer, ok := sessionConfig.SessionLogger.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	s := session.New(sessionConfig)
	defer s.Close()

	log.Printf("connecting to robot at %s", cfg.RobotAddr)
	if err := s.Start(ctx); err != nil {
		return err
	}
	log.Printf("robot ready, firmware %s", s.FirmwareVersion())

	if err := s.StartForceMode(cfg.ForceMode.Params(), cfg.ForceMode.GainScaling); err != nil {
		return fmt.Errorf("start force mode: %w", err)
	}
	log.Println("force mode active")

	if err := holdForceMode(ctx, s, cfg.Duration); err != nil {
		return err
	}

	if err := s.EndForceMode(); err != nil {
		return fmt.Errorf("end force mode: %w", err)
	}
	log.Println("force mode ended")
	return nil
}

// holdForceMode keeps the session alive until the duration elapses or
// the context is cancelled. Zero duration means run until interrupted.
func holdForceMode(ctx context.Context, s *session.ControlSession, duration time.Duration) error {
	ticker := time.NewTicker(s.MaxKeepaliveInterval())
	defer ticker.Stop()

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticker.C:
			if err := s.WriteKeepalive(); err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
		}
	}
}

func discoverRobot(ctx context.Context, serial string) (string, error) {
	browser := discovery.NewBrowser(discovery.DefaultBrowserConfig())
	defer browser.Stop()

	if serial != "" {
		svc, err := browser.FindBySerial(ctx, serial)
		if err != nil {
			return "", err
		}
		return firstAddress(svc)
	}

	browseCtx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()
	results, err := browser.Browse(browseCtx)
	if err != nil {
		return "", err
	}
	for svc := range results {
		return firstAddress(svc)
	}
	return "", fmt.Errorf("no robot found")
}

func firstAddress(svc *discovery.RobotService) (string, error) {
	if len(svc.Addresses) == 0 {
		return "", fmt.Errorf("robot %s advertised no addresses", svc.InstanceName)
	}
	return svc.Addresses[0], nil
}

func buildSessionConfig(cfg config.Config) (session.Config, error) {
	tmpl := script.NewTemplate("builtin", defaultProgram)
	if cfg.ScriptPath != "" {
		loaded, err := script.LoadTemplate(cfg.ScriptPath)
		if err != nil {
			return session.Config{}, err
		}
		tmpl = loaded
	}

	// Recipe files override the script's declared recipes.
	inputRecipe, outputRecipe := tmpl.DeclaredRecipes()
	if cfg.InputRecipePath != "" {
		loaded, err := rtde.LoadRecipe(cfg.InputRecipePath)
		if err != nil {
			return session.Config{}, err
		}
		inputRecipe = loaded
	}
	if cfg.OutputRecipePath != "" {
		loaded, err := rtde.LoadRecipe(cfg.OutputRecipePath)
		if err != nil {
			return session.Config{}, err
		}
		outputRecipe = loaded
	}

	var events urlog.Logger = urlog.NoopLogger{}
	if cfg.LogFile != "" {
		fileLogger, err := urlog.NewFileLogger(cfg.LogFile)
		if err != nil {
			return session.Config{}, fmt.Errorf("open log file: %w", err)
		}
		events = fileLogger
	}

	var power session.PowerPolicy = session.NoopPowerPolicy{}
	if cfg.PowerOn {
		power = session.FullPowerPolicy{}
	}

	return session.Config{
		RobotAddr:           cfg.RobotAddr,
		ReverseAddr:         cfg.ReverseAddr,
		CallbackHost:        cfg.CallbackHost,
		Script:              tmpl,
		InputRecipe:         inputRecipe,
		OutputRecipe:        outputRecipe,
		CalibrationChecksum: cfg.CalibrationChecksum,
		ReadyTimeout:        cfg.ReadyTimeout,
		RobotReadTimeout:    cfg.RobotReadTimeout,
		PowerPolicy:         power,
		SessionLogger:       events,
	}, nil
}
