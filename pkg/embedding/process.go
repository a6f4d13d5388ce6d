package embedding

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	commonerrors "github.com/S-Corkum/embedding-gateway/pkg/common/errors"
)

//go:embed scripts/embed.py
var builtinScript []byte

// maxStderr bounds how much of the child's stderr ends up in an error message
const maxStderr = 2048

// ProcessConfig configures the external-process embedder
type ProcessConfig struct {
	// Command is the interpreter or binary to run, python3 by default
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	// Script is a path to a model script. Empty means the built-in
	// sentence-transformers script, written to a temp file per call.
	Script string `mapstructure:"script"`
	// Env is appended to the parent environment
	Env []string `mapstructure:"env"`
	// TempDir holds the transient script; empty means os.TempDir()
	TempDir string `mapstructure:"temp_dir"`
}

// ProcessEmbedder runs one child process per Embed call. The text is written
// to the child's stdin and the vector is read from its stdout as JSON.
type ProcessEmbedder struct {
	model     string
	dimension int
	config    ProcessConfig
}

// NewProcessEmbedder creates a new ProcessEmbedder
func NewProcessEmbedder(model string, dimension int, config ProcessConfig) (*ProcessEmbedder, error) {
	if model == "" {
		model = DefaultProcessModel
	}
	if config.Command == "" {
		config.Command = "python3"
	}
	if config.Script != "" {
		if _, err := os.Stat(config.Script); err != nil {
			return nil, errors.Wrapf(err, "embedding script %s", config.Script)
		}
	}
	return &ProcessEmbedder{model: model, dimension: dimension, config: config}, nil
}

// Name returns the provider name
func (p *ProcessEmbedder) Name() string { return ProviderProcess }

// Model returns the model name passed to the script
func (p *ProcessEmbedder) Model() string { return p.model }

// Dimension returns the configured vector length
func (p *ProcessEmbedder) Dimension() int { return p.dimension }

// Embed runs the model process for text
func (p *ProcessEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if err := checkText(ProviderProcess, text); err != nil {
		return nil, err
	}

	script := p.config.Script
	if script == "" {
		path, cleanup, err := p.writeBuiltinScript()
		if err != nil {
			return nil, commonerrors.Embedding("process.Embed", "failed to prepare embedding script", err)
		}
		defer cleanup()
		script = path
	}

	args := append(append([]string{}, p.config.Args...), script, p.model)
	cmd := exec.CommandContext(ctx, p.config.Command, args...)
	cmd.Env = append(os.Environ(), p.config.Env...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, commonerrors.Embedding("process.Embed", "embedding process cancelled", ctx.Err())
		}
		msg := fmt.Sprintf("embedding process failed (%v)", err)
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			msg += ": " + tail
		}
		return nil, commonerrors.Embedding("process.Embed", msg, nil)
	}

	vector, err := parseVector(stdout.Bytes())
	if err != nil {
		return nil, commonerrors.Embedding("process.Embed", "embedding process produced malformed output", err)
	}
	if err := checkDimension(ProviderProcess, vector, p.dimension); err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *ProcessEmbedder) writeBuiltinScript() (string, func(), error) {
	f, err := os.CreateTemp(p.config.TempDir, "embed-*.py")
	if err != nil {
		return "", nil, errors.Wrap(err, "create temp script")
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(builtinScript); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, errors.Wrap(err, "write temp script")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, errors.Wrap(err, "close temp script")
	}
	return f.Name(), cleanup, nil
}

// parseVector accepts either a bare JSON array or {"embedding": [...]}
func parseVector(out []byte) (Vector, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("empty output")
	}

	if out[0] == '[' {
		var v Vector
		if err := json.Unmarshal(out, &v); err != nil {
			return nil, errors.Wrap(err, "decode vector")
		}
		return v, nil
	}

	var wrapped struct {
		Embedding Vector `json:"embedding"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(out, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode vector")
	}
	if wrapped.Error != "" {
		return nil, errors.New(wrapped.Error)
	}
	if wrapped.Embedding == nil {
		return nil, errors.New(`output has no "embedding" field`)
	}
	return wrapped.Embedding, nil
}

func stderrTail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) <= maxStderr {
		return s
	}
	start := len(s) - maxStderr
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return "..." + s[start:]
}
