package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"lecturenotes/internal/client"
	"lecturenotes/internal/config"
)

const userEnvVar = "LECTURENOTES_USER"

type commandContext struct {
	addrFlag   *string
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addrFlag, configFlag, userFlag *string) *commandContext {
	return &commandContext{
		addrFlag:   addrFlag,
		configFlag: configFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) address() string {
	if c.addrFlag != nil && strings.TrimSpace(*c.addrFlag) != "" {
		return strings.TrimSpace(*c.addrFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.API.Bind
	}
	return ""
}

func (c *commandContext) user() string {
	if c.userFlag != nil && strings.TrimSpace(*c.userFlag) != "" {
		return strings.TrimSpace(*c.userFlag)
	}
	return strings.TrimSpace(os.Getenv(userEnvVar))
}

func (c *commandContext) requireUser() (string, error) {
	user := c.user()
	if user == "" {
		return "", fmt.Errorf("a user email is required: pass --user or set %s", userEnvVar)
	}
	return user, nil
}

func (c *commandContext) newClient() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := []client.Option{}
	if user := c.user(); user != "" {
		opts = append(opts, client.WithUser(user))
	}
	return client.New(c.address(), cfg.API.Token, opts...)
}

func (c *commandContext) withClient(fn func(*client.Client) error) error {
	cl, err := c.newClient()
	if err != nil {
		return err
	}
	return wrapDialError(fn(cl), c.address())
}

func wrapDialError(err error, addr string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `lecturenotes serve`", addr)
	default:
		return err
	}
}

// formatError appends the daemon's hint, when it sent one.
func formatError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Hint != "" {
		return fmt.Sprintf("%v\nhint: %s", err, apiErr.Hint)
	}
	return err.Error()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
