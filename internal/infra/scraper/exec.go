// Package scraper runs the external browser-automation command that logs into
// a portal and reports its accounts. One process is started per attempt; the
// request goes in as JSON on stdin and the result comes back as JSON on stdout.
package scraper

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
	"time"
	"unicode/utf8"

	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// ErrNoCommand is returned when no scraper command is configured.
var ErrNoCommand = errors.New("scraper command not configured")

const stderrTail = 512

type request struct {
	CompanyID   domain.Company     `json:"companyId"`
	Credentials domain.Credentials `json:"credentials"`
	StartDate   string             `json:"startDate"`
	ShowBrowser bool               `json:"showBrowser"`
}

// ExecFetcher implements the fetch operation by running a subprocess.
type ExecFetcher struct {
	cfg config.ScraperConfig
	log *slog.Logger
}

func NewExecFetcher(cfg config.ScraperConfig, log *slog.Logger) *ExecFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &ExecFetcher{cfg: cfg, log: log}
}

// Fetch runs one attempt. Portal-level failures come back as a result with
// Success=false; a crashed or misbehaving command is returned as an error.
//
// The context is checked before the process starts only. A started attempt
// always runs to completion.
func (f *ExecFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	if f.cfg.Command == "" {
		return nil, ErrNoCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(request{
		CompanyID:   req.Company,
		Credentials: req.Credentials,
		StartDate:   req.StartDate.UTC().Format(time.RFC3339),
		ShowBrowser: req.ShowBrowser,
	})
	if err != nil {
		return nil, fmt.Errorf("encode scraper request: %w", err)
	}

	cmd := exec.Command(f.cfg.Command, f.cfg.Args...)
	cmd.Dir = f.cfg.WorkDir
	cmd.Env = append(os.Environ(), f.cfg.Env...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.log.Debug("Starting scraper",
		"source", req.Source,
		"company", req.Company,
		"command", f.cfg.Command,
	)
	start := time.Now()
	runErr := cmd.Run()
	f.log.Debug("Scraper exited",
		"source", req.Source,
		"duration", time.Since(start).Round(time.Millisecond),
		"stderr_bytes", stderr.Len(),
	)

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("scraper for %s exited with code %d: %s",
				req.Source, exitErr.ExitCode(), tail(stderr.String()))
		}
		return nil, fmt.Errorf("run scraper for %s: %w", req.Source, runErr)
	}

	result, err := decodeResult(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("scraper for %s: %w", req.Source, err)
	}
	return result, nil
}

// decodeResult accepts either a JSON document as the whole output or log lines
// followed by a final single-line JSON document.
func decodeResult(out []byte) (*domain.FetchResult, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, errors.New("empty scraper output")
	}

	var result domain.FetchResult
	if err := json.Unmarshal(trimmed, &result); err == nil {
		return &result, nil
	}

	lines := bytes.Split(trimmed, []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if err := json.Unmarshal(last, &result); err != nil {
		return nil, fmt.Errorf("decode scraper output: %w", err)
	}
	return &result, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		cut := len(s) - stderrTail
		for cut < len(s) && !utf8.RuneStart(s[cut]) {
			cut++
		}
		s = "..." + s[cut:]
	}
	if s == "" {
		return "(no stderr)"
	}
	return s
}
