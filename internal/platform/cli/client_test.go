package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"slices"
	"strings"
	"testing"

	"icabatch/internal/apperrors"
	"icabatch/internal/platform"
)

// fakeRun records invocations and replies from a script keyed on the CLI
// subcommand.
type fakeRun struct {
	invocations [][]string
	script      map[string]func(args []string) ([]byte, error)
}

func (f *fakeRun) run(ctx context.Context, binary string, args []string) ([]byte, error) {
	f.invocations = append(f.invocations, args)
	if fn, ok := f.script[args[0]]; ok {
		return fn(args)
	}
	return []byte("{}"), nil
}

func newTestClient(script map[string]func(args []string) ([]byte, error)) (*Client, *fakeRun) {
	fake := &fakeRun{script: script}
	c := &Client{
		binary:  "ica",
		project: "genomics-prod",
		logger:  slog.Default(),
		run:     fake.run,
	}
	return c, fake
}

func TestUpload(t *testing.T) {
	c, fake := newTestClient(map[string]func([]string) ([]byte, error){
		"projectdata": func(args []string) ([]byte, error) {
			return []byte(`{"id":"fol.abc123"}`), nil
		},
	})

	ref, err := c.Upload(context.Background(), "/data/sample1", "sample1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ref != "fol.abc123" {
		t.Errorf("data ref = %q", ref)
	}

	args := fake.invocations[0]
	for _, want := range []string{"projectdata", "upload", "/data/sample1", "/sample1/", "--project", "genomics-prod", "--output", "json"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
}

func TestLaunchPassesParamsFile(t *testing.T) {
	var paramsPath string
	var params map[string]any

	c, fake := newTestClient(map[string]func([]string) ([]byte, error){
		"projectpipelines": func(args []string) ([]byte, error) {
			for i, a := range args {
				if a == "--params-file" {
					paramsPath = args[i+1]
				}
			}
			data, err := os.ReadFile(paramsPath)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(data, &params); err != nil {
				return nil, err
			}
			return []byte(`{"id":"an-42"}`), nil
		},
	})

	id, err := c.Launch(context.Background(), platform.LaunchSpec{
		Pipeline:      "dragen-germline",
		UserReference: "sample1-run1",
		DataRef:       "fol.abc123",
		Params:        map[string]any{"sample-id": "sample1", "enable-variant-caller": true},
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if id != "an-42" {
		t.Errorf("analysis id = %q", id)
	}
	if params["sample-id"] != "sample1" || params["enable-variant-caller"] != true {
		t.Errorf("params file content = %v", params)
	}
	if _, err := os.Stat(paramsPath); !os.IsNotExist(err) {
		t.Errorf("params file %s not cleaned up", paramsPath)
	}

	args := fake.invocations[0]
	if !slices.Contains(args, "--input") || !slices.Contains(args, "folder:fol.abc123") {
		t.Errorf("args %v missing input folder", args)
	}
}

func TestPollMapsStatuses(t *testing.T) {
	tests := []struct {
		status string
		want   platform.State
	}{
		{"REQUESTED", platform.StateRunning},
		{"INPROGRESS", platform.StateRunning},
		{"SUCCEEDED", platform.StateSucceeded},
		{"FAILED", platform.StateFailed},
		{"ABORTED", platform.StateFailed},
	}

	for _, tc := range tests {
		c, _ := newTestClient(map[string]func([]string) ([]byte, error){
			"projectanalyses": func(args []string) ([]byte, error) {
				doc := map[string]string{"status": tc.status, "summary": "s"}
				return json.Marshal(doc)
			},
		})
		got, err := c.Poll(context.Background(), "an-1")
		if err != nil {
			t.Fatalf("poll %s: %v", tc.status, err)
		}
		if got.State != tc.want {
			t.Errorf("%s mapped to %s, want %s", tc.status, got.State, tc.want)
		}
	}
}

func TestClassifyStderr(t *testing.T) {
	cause := errors.New("exit status 1")
	tests := []struct {
		name      string
		stderr    string
		sentinel  error
		retryable bool
	}{
		{"connection refused", "Error: connection refused by ica.illumina.com", apperrors.ErrNetwork, true},
		{"gateway timeout", "request timed out after 60s", apperrors.ErrNetwork, true},
		{"rate limited", "HTTP 429 Too Many Requests", apperrors.ErrNetwork, true},
		{"bad gateway", "server returned 502", apperrors.ErrNetwork, true},
		{"missing analysis", "analysis an-9 not found", apperrors.ErrNotFound, false},
		{"quota", "project storage quota exceeded", apperrors.ErrResource, false},
		{"empty stderr", "", apperrors.ErrResource, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStderr("cli.test", tc.stderr, cause)
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("error = %v, want sentinel %v", err, tc.sentinel)
			}
			if got := apperrors.Retryable(err); got != tc.retryable {
				t.Errorf("Retryable = %v, want %v", got, tc.retryable)
			}
		})
	}
}

func TestRunJSONRejectsGarbageOutput(t *testing.T) {
	c, _ := newTestClient(map[string]func([]string) ([]byte, error){
		"projects": func(args []string) ([]byte, error) {
			return []byte("ica CLI v2.1.0\nplease run ica auth login"), nil
		},
	})

	err := c.Ready(context.Background())
	if !errors.Is(err, apperrors.ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}
	if !strings.Contains(err.Error(), "unparseable") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestListData(t *testing.T) {
	c, fake := newTestClient(map[string]func([]string) ([]byte, error){
		"projectdata": func(args []string) ([]byte, error) {
			return []byte(`{"items":[
				{"id":"fol.1","name":"sample1","dataType":"FOLDER","size":"12 GB"},
				{"id":"fil.2","name":"sample1.vcf","dataType":"FILE","size":"3 MB"}
			]}`), nil
		},
	})

	items, err := c.ListData(context.Background(), "sample1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Name != "sample1" || items[1].Type != "FILE" {
		t.Errorf("items = %+v", items)
	}

	args := fake.invocations[0]
	if !slices.Contains(args, "--file-name") || !slices.Contains(args, "sample1") {
		t.Errorf("args %v missing filename filter", args)
	}
}

func TestStorageAndCosts(t *testing.T) {
	c, _ := newTestClient(map[string]func([]string) ([]byte, error){
		"projects": func(args []string) ([]byte, error) {
			if slices.Contains(args, "storage") {
				return []byte(`{"usedGb":750,"totalGb":1000}`), nil
			}
			return []byte(`{"totalCost":1234.5,"currency":"USD"}`), nil
		},
	})

	usage, err := c.Storage(context.Background())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if usage.Percent() != 75 {
		t.Errorf("percent = %v, want 75", usage.Percent())
	}

	costs, err := c.Costs(context.Background())
	if err != nil {
		t.Fatalf("costs: %v", err)
	}
	if costs.TotalCost != 1234.5 || costs.Currency != "USD" {
		t.Errorf("costs = %+v", costs)
	}
}
