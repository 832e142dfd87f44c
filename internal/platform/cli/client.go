// Package cli implements the platform client by shelling out to the vendor
// CLI. It exists for sites where direct REST access is blocked and the CLI's
// session-based auth is the only sanctioned path.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"icabatch/internal/apperrors"
	"icabatch/internal/config"
	"icabatch/internal/platform"
)

// runFunc executes one CLI invocation and returns its stdout.
// It is swappable so tests never spawn processes.
type runFunc func(ctx context.Context, binary string, args []string) ([]byte, error)

// Client drives the vendor CLI for one project.
type Client struct {
	binary     string
	project    string
	keepParams bool
	logger     *slog.Logger
	run        runFunc
}

// New creates a CLI-backed client from platform configuration.
// ICA_KEEP_PARAMS=true preserves generated params files for debugging.
func New(cfg *config.PlatformConfig) *Client {
	return &Client{
		binary:     cfg.CLIBinary,
		project:    cfg.Project,
		keepParams: config.GetEnv("ICA_KEEP_PARAMS", "") == "true",
		logger:     slog.With("component", "ica-cli"),
		run:        runCommand,
	}
}

// runCommand executes the CLI and maps process failures onto the error
// taxonomy using the stderr text.
func runCommand(ctx context.Context, binary string, args []string) ([]byte, error) {
	op := fmt.Sprintf("cli.%s", firstArg(args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, apperrors.Resource(op, fmt.Sprintf("%s: binary not found in PATH", binary))
		}
		return nil, classifyStderr(op, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.Bytes(), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return "?"
	}
	return args[0]
}

// classifyStderr decides retryability from the CLI's error text. The CLI
// does not expose structured errors, so this is a best-effort match on the
// messages it actually prints.
func classifyStderr(op, stderr string, cause error) error {
	msg := stderr
	if msg == "" {
		msg = cause.Error()
	}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "not found") || strings.Contains(lower, "no data found"):
		return &apperrors.Error{Sentinel: apperrors.ErrNotFound, Message: fmt.Sprintf("%s: %s", op, msg), Op: op}
	case strings.Contains(lower, "connection") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "temporarily unavailable") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503"):
		return apperrors.Network(op, errors.New(msg))
	default:
		return apperrors.Resource(op, fmt.Sprintf("%s: %s", op, msg))
	}
}

// runJSON executes the CLI with --output json and decodes stdout into out.
func (c *Client) runJSON(ctx context.Context, out any, args ...string) error {
	args = append(args, "--project", c.project, "--output", "json")
	data, err := c.run(ctx, c.binary, args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Resource(fmt.Sprintf("cli.%s", firstArg(args)),
			fmt.Sprintf("unparseable CLI output: %v", err))
	}
	return nil
}

// Ready verifies the CLI is installed and the session can see the project.
func (c *Client) Ready(ctx context.Context) error {
	var out struct {
		ID string `json:"id"`
	}
	return c.runJSON(ctx, &out, "projects", "get", c.project)
}

// Upload pushes a local folder into the project and returns its data reference.
func (c *Client) Upload(ctx context.Context, folder, name string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.runJSON(ctx, &out, "projectdata", "upload", folder, "/"+name+"/"); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.Resource("cli.projectdata", "upload returned no data id")
	}
	c.logger.Info("Folder uploaded", "folder", folder, "dataRef", out.ID)
	return out.ID, nil
}

// Launch starts a pipeline analysis. The resolved parameters are passed via
// a temporary file, removed once the CLI returns.
func (c *Client) Launch(ctx context.Context, spec platform.LaunchSpec) (string, error) {
	paramsFile, err := writeParamsFile(spec.Params)
	if err != nil {
		return "", err
	}
	if c.keepParams {
		c.logger.Info("Keeping params file", "path", paramsFile, "userReference", spec.UserReference)
	} else {
		defer os.Remove(paramsFile)
	}

	var out struct {
		ID string `json:"id"`
	}
	err = c.runJSON(ctx, &out, "projectpipelines", "start", spec.Pipeline,
		"--user-reference", spec.UserReference,
		"--input", "folder:"+spec.DataRef,
		"--params-file", paramsFile)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apperrors.Resource("cli.projectpipelines", "start returned no analysis id")
	}
	return out.ID, nil
}

// Poll returns the current status of an analysis.
func (c *Client) Poll(ctx context.Context, analysisID string) (platform.Status, error) {
	var out struct {
		Status  string `json:"status"`
		Summary string `json:"summary"`
	}
	if err := c.runJSON(ctx, &out, "projectanalyses", "get", analysisID); err != nil {
		return platform.Status{}, err
	}
	return platform.StatusFrom(out.Status, out.Summary), nil
}

// Download fetches the analysis output folder into dest.
func (c *Client) Download(ctx context.Context, analysisID, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return apperrors.IO("download.mkdir", err)
	}
	if err := c.runJSON(ctx, nil, "projectanalyses", "output", "download", analysisID, dest); err != nil {
		return err
	}
	c.logger.Info("Results downloaded", "analysis", analysisID, "dest", dest)
	return nil
}

// writeParamsFile serializes pipeline parameters for the CLI.
func writeParamsFile(params map[string]any) (string, error) {
	f, err := os.CreateTemp("", "ica-params-*.json")
	if err != nil {
		return "", apperrors.IO("launch.params", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(params); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", apperrors.IO("launch.params", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", apperrors.IO("launch.params", err)
	}
	return f.Name(), nil
}
