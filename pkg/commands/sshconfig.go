package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/harborworks/dockhand/pkg/interact"
)

// SSHConfig returns the CLI command that manages ssh_config entries
// pointing at the SSH gateway, so `ssh dockhand.<id>` lands in a sandbox.
func SSHConfig() *cli.Command {
	return &cli.Command{
		Name:  "ssh-config",
		Usage: "Add or remove an SSH config entry for a sandbox",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "gateway",
				Usage:   "host:port of the SSH gateway",
				Value:   "127.0.0.1:2222",
				Sources: cli.EnvVars("DOCKHAND_SSH_GATEWAY"),
			},
			&cli.BoolFlag{
				Name:  "remove",
				Usage: "Remove the entry instead of adding it",
			},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "id",
				UsageText: "Sandbox id",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: runSSHConfig,
	}
}

func runSSHConfig(ctx context.Context, c *cli.Command) error {
	id := c.StringArg("id")
	if id == "" {
		return fmt.Errorf("sandbox id is required")
	}

	p := interact.NewPrinter(c.Root().Writer)
	hostAlias := "dockhand." + id

	if c.Bool("remove") {
		if err := removeSSHEntry(hostAlias); err != nil {
			return fmt.Errorf("failed to remove SSH config entry: %w", err)
		}
		p.Success(fmt.Sprintf("SSH config entry %q removed", hostAlias))
		return nil
	}

	host, port, err := net.SplitHostPort(c.String("gateway"))
	if err != nil {
		return fmt.Errorf("invalid gateway address: %w", err)
	}

	if err := writeSSHEntry(hostAlias, id, host, port); err != nil {
		return fmt.Errorf("failed to update SSH config: %w", err)
	}
	p.Success(fmt.Sprintf("SSH config entry %q added", hostAlias))
	p.Info(fmt.Sprintf("Connect with: ssh %s", hostAlias))
	return nil
}

// sshConfigPath is the dockhand-managed ssh_config fragment; the user's
// main config gains an Include for it once.
func sshConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dockhand", "ssh_config"), nil
}

func writeSSHEntry(hostAlias, user, host, port string) error {
	configPath, err := sshConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	existing := ""
	if data, err := os.ReadFile(configPath); err == nil {
		existing = string(data)
	}
	existing = dropSSHEntry(existing, hostAlias)

	entry := fmt.Sprintf(`Host %s
    HostName %s
    Port %s
    User %s
    StrictHostKeyChecking no
    UserKnownHostsFile /dev/null

`, hostAlias, host, port, user)

	if err := os.WriteFile(configPath, []byte(existing+entry), 0644); err != nil {
		return err
	}
	return ensureSSHInclude(configPath)
}

func removeSSHEntry(hostAlias string) error {
	configPath, err := sshConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	trimmed := dropSSHEntry(string(data), hostAlias)
	if trimmed == string(data) {
		return nil
	}
	return os.WriteFile(configPath, []byte(trimmed), 0644)
}

// dropSSHEntry removes one Host block, leaving every other block intact.
// The alias must match the whole token after "Host", so dockhand.a never
// swallows a dockhand.ab block.
func dropSSHEntry(config, hostAlias string) string {
	lines := strings.Split(config, "\n")
	var kept []string
	skip := false
	found := false
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(line, "Host "); ok {
			skip = strings.TrimSpace(rest) == hostAlias
			if skip {
				found = true
				continue
			}
		}
		if skip && strings.TrimSpace(line) == "" {
			continue
		}
		if !skip {
			kept = append(kept, line)
		}
	}
	if !found {
		return config
	}
	return strings.Join(kept, "\n")
}

// ensureSSHInclude makes the user's main SSH config include the managed
// fragment exactly once.
func ensureSSHInclude(configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return err
	}

	mainConfig := filepath.Join(sshDir, "config")
	existing := ""
	if data, err := os.ReadFile(mainConfig); err == nil {
		existing = string(data)
	}
	if strings.Contains(existing, configPath) {
		return nil
	}

	include := fmt.Sprintf("Include %s\n", configPath)
	return os.WriteFile(mainConfig, []byte(include+existing), 0644)
}
