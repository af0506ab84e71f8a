package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// TestHelperProcess is not a real test. It stands in for the scraper command.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	in, _ := io.ReadAll(os.Stdin)
	var req request
	if err := json.Unmarshal(in, &req); err != nil {
		fmt.Fprintf(os.Stderr, "bad request: %v", err)
		os.Exit(3)
	}

	switch os.Getenv("HELPER_MODE") {
	case "success":
		fmt.Println("launching browser...")
		fmt.Printf(`{"success":true,"accounts":[{"accountNumber":%q,"txns":[{"date":%q,"chargedAmount":-10,"description":"coffee"}]}]}`+"\n",
			req.Credentials["username"], req.StartDate)
	case "pretty":
		fmt.Print("{\n  \"success\": true,\n  \"accounts\": []\n}\n")
	case "failure":
		fmt.Printf(`{"success":false,"errorType":"InvalidPassword","errorMessage":"bad login for %s"}`+"\n", req.CompanyID)
	case "crash":
		fmt.Fprint(os.Stderr, "TypeError: cannot read properties of undefined")
		os.Exit(2)
	case "garbage":
		fmt.Println("not json at all")
	case "echo-browser":
		fmt.Printf(`{"success":%t}`+"\n", req.ShowBrowser)
	}
}

func helperFetcher(mode string) *ExecFetcher {
	return NewExecFetcher(config.ScraperConfig{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Env:     []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
	}, nil)
}

func testRequest() domain.FetchRequest {
	return domain.FetchRequest{
		Source:      domain.SourceLeumi,
		Company:     domain.CompanyLeumi,
		Credentials: domain.Credentials{"username": "acc-1", "password": "secret"},
		StartDate:   time.Date(2026, 7, 17, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetch_Success(t *testing.T) {
	res, err := helperFetcher("success").Fetch(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if len(res.Accounts) != 1 || res.Accounts[0].AccountNumber != "acc-1" {
		t.Errorf("unexpected accounts %+v", res.Accounts)
	}
	if got := res.Accounts[0].Txns[0].Date; got != "2026-07-17T00:00:00Z" {
		t.Errorf("expected start date passed through, got %s", got)
	}
	if res.TransactionCount() != 1 {
		t.Errorf("expected 1 transaction, got %d", res.TransactionCount())
	}
}

func TestFetch_PrettyOutput(t *testing.T) {
	res, err := helperFetcher("pretty").Fetch(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
}

func TestFetch_ReportedFailure(t *testing.T) {
	res, err := helperFetcher("failure").Fetch(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("reported failures must not be Go errors: %v", err)
	}
	if res.Success {
		t.Fatal("expected Success=false")
	}
	if res.ErrorType != "InvalidPassword" {
		t.Errorf("expected InvalidPassword, got %s", res.ErrorType)
	}
	if res.ErrorMessage != "bad login for leumi" {
		t.Errorf("unexpected message %q", res.ErrorMessage)
	}
}

func TestFetch_ShowBrowser(t *testing.T) {
	req := testRequest()
	req.ShowBrowser = true
	res, err := helperFetcher("echo-browser").Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !res.Success {
		t.Error("expected showBrowser=true to reach the command")
	}
}

func TestFetch_OpaqueFailures(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"crash", "exited with code 2"},
		{"garbage", "decode scraper output"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			_, err := helperFetcher(tt.mode).Fetch(context.Background(), testRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
			if _, ok := domain.KindOf(err); ok {
				t.Error("opaque failures must not carry a kind")
			}
		})
	}
}

func TestFetch_CrashIncludesStderr(t *testing.T) {
	_, err := helperFetcher("crash").Fetch(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "TypeError") {
		t.Errorf("expected stderr tail in error, got %v", err)
	}
}

func TestFetch_NoCommand(t *testing.T) {
	f := NewExecFetcher(config.ScraperConfig{}, nil)
	if _, err := f.Fetch(context.Background(), testRequest()); err != ErrNoCommand {
		t.Errorf("expected ErrNoCommand, got %v", err)
	}
}

func TestFetch_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := helperFetcher("success").Fetch(ctx, testRequest()); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTail_KeepsRunesWhole(t *testing.T) {
	// "€" is three bytes, so a byte cut at len-512 lands mid-rune
	got := tail(strings.Repeat("€", 300))
	if !utf8.ValidString(got) {
		t.Fatalf("tail split a rune: %q", got[:8])
	}
	if !strings.HasPrefix(got, "...€") {
		t.Errorf("unexpected start %q", got[:8])
	}
	if len(got) > stderrTail+3 {
		t.Errorf("tail too long: %d", len(got))
	}
}

func TestTail(t *testing.T) {
	if got := tail("  "); got != "(no stderr)" {
		t.Errorf("unexpected %q", got)
	}
	long := strings.Repeat("x", stderrTail+10)
	if got := tail(long); len(got) != stderrTail+3 || !strings.HasPrefix(got, "...") {
		t.Errorf("unexpected tail length %d", len(got))
	}
}
