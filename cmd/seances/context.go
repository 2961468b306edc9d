package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Clark-Hu/seances/internal/app"
	"github.com/Clark-Hu/seances/internal/config"
)

type commandContext struct {
	envFlag     *string
	verboseFlag *bool
	jsonFlag    *bool

	configOnce sync.Once
	config     config.Config
	configErr  error

	app *app.App
}

func newCommandContext(envFlag *string, verboseFlag, jsonFlag *bool) *commandContext {
	return &commandContext{
		envFlag:     envFlag,
		verboseFlag: verboseFlag,
		jsonFlag:    jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.envFlag)
		if path != "" {
			if err := godotenv.Load(path); err != nil {
				c.configErr = err
				return
			}
		} else {
			_ = godotenv.Load()
		}
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *log.Logger {
	if c.verboseFlag != nil && *c.verboseFlag {
		return log.New(os.Stderr, "[seances] ", log.LstdFlags|log.Lshortfile)
	}
	return log.New(io.Discard, "", 0)
}

// ensureApp builds the full component graph on first use.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Build(ctx, cfg, c.logger())
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *commandContext) wantJSON() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
