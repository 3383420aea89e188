package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/condorhq/fieldops/internal/agent"
	"github.com/condorhq/fieldops/internal/appdir"
	"github.com/condorhq/fieldops/internal/bus"
	"github.com/condorhq/fieldops/internal/config"
	"github.com/condorhq/fieldops/internal/logging"
	"github.com/condorhq/fieldops/internal/netmon"
	"github.com/condorhq/fieldops/internal/order"
	"github.com/condorhq/fieldops/internal/store"
	"github.com/condorhq/fieldops/internal/submit"
	"go.uber.org/fx"
)

const defaultAPIURL = "http://localhost:3001/api"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "login":
		err = cmdLogin(os.Args[2:])
	case "submit":
		err = cmdSubmit(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "retry":
		err = cmdRetry(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: fieldagent <command> [flags]

commands:
  login   authenticate and store a session token
  submit  submit a work order from a JSON file
  run     run the background sync daemon
  status  show queue and connectivity status
  retry   reset frozen queue entries for another drain`)
}

// apiURL resolves the backend URL: flag override, then config file, then default.
func apiURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg, err := config.LoadAgent(appdir.ConfigPath()); err == nil && cfg.APIURL != "" {
		return cfg.APIURL
	}
	return defaultAPIURL
}

func loadToken() string {
	data, err := os.ReadFile(appdir.TokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func openStore() (*store.DB, error) {
	if err := appdir.EnsureDir(); err != nil {
		return nil, err
	}
	db, err := store.Open(appdir.DBPath())
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	api := fs.String("api", "", "backend API base URL")
	email := fs.String("email", "", "technician email")
	pin := fs.String("pin", "", "access PIN")
	_ = fs.Parse(args)

	if *email == "" || *pin == "" {
		return fmt.Errorf("login requires -email and -pin")
	}

	url := apiURL(*api)
	client := submit.NewClient(url)
	res, err := client.Login(context.Background(), *email, *pin)
	if err != nil {
		return err
	}

	if err := appdir.EnsureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(appdir.TokenPath(), []byte(res.Token), 0600); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if *api != "" {
		if err := config.SaveAgent(appdir.ConfigPath(), &config.Agent{APIURL: url}); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	fmt.Printf("logged in as %s (%s)\n", res.User.Nombre, res.User.Email)
	return nil
}

func cmdSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	api := fs.String("api", "", "backend API base URL")
	file := fs.String("f", "", "order payload JSON file")
	_ = fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("submit requires -f <order.json>")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var p order.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse order file: %w", err)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger, err := logging.New(appdir.LogPath(), "fieldagent")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	url := apiURL(*api)
	client := submit.NewClient(url)
	client.SetToken(loadToken())
	b := bus.New()
	monitor := netmon.New(netmon.HTTPProbe(url, nil), db.ActionableCount, b, logger, 0)
	submitter := submit.NewSubmitter(client, db, monitor, b, logger)

	result, err := submitter.Submit(context.Background(), &p)
	if err != nil {
		return err
	}

	switch {
	case result.Offline:
		n, _ := db.ActionableCount()
		fmt.Printf("offline: order queued locally (%d pending)\n", n)
	case result.Duplicate:
		fmt.Printf("duplicate: order already recorded as %s\n", result.RecordID)
	case result.RelayOk:
		fmt.Printf("order %s recorded and relayed\n", result.RecordID)
	default:
		fmt.Printf("order %s recorded; relay failed: %s\n", result.RecordID, result.RelayError)
	}
	return nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	api := fs.String("api", "", "backend API base URL")
	_ = fs.Parse(args)

	interval := time.Duration(0)
	if cfg, err := config.LoadAgent(appdir.ConfigPath()); err == nil && cfg.ProbeIntervalSeconds > 0 {
		interval = time.Duration(cfg.ProbeIntervalSeconds) * time.Second
	}

	app := fx.New(
		agent.Module(agent.Params{
			APIURL:        apiURL(*api),
			Token:         loadToken(),
			ProbeInterval: interval,
		}),
	)

	app.Run()
	return nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	api := fs.String("api", "", "backend API base URL")
	_ = fs.Parse(args)

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	total, err := db.Count()
	if err != nil {
		return err
	}
	actionable, err := db.ActionableCount()
	if err != nil {
		return err
	}

	url := apiURL(*api)
	probe := netmon.HTTPProbe(url, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state := "offline"
	if probe(ctx) == nil {
		state = "online"
	}

	fmt.Printf("backend:    %s (%s)\n", url, state)
	fmt.Printf("queued:     %d actionable, %d total\n", actionable, total)
	if frozen := total - actionable; frozen > 0 {
		fmt.Printf("frozen:     %d (run 'fieldagent retry' to requeue)\n", frozen)
	}
	return nil
}

func cmdRetry(args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	_ = fs.Parse(args)

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	n, err := db.ResetFrozen()
	if err != nil {
		return err
	}
	fmt.Printf("requeued %d frozen entries\n", n)
	return nil
}
