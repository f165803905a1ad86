package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jetgogoing/sage/pkg/config"
)

// ValidateCmd validates a config.json file, grounded on
// kadirpekel/hector's cmd/hector/validate.go: load with the real
// loader (defaults + env applied), report success or the first
// validation error.
type ValidateCmd struct {
	Config      string `arg:"" name:"config" help:"Path to config.json." placeholder:"PATH"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()

	loader, err := config.NewLoader(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	defer loader.Close()

	cfg, err := loader.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}

	if c.PrintConfig {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%s: valid\n", c.Config)
	return nil
}
