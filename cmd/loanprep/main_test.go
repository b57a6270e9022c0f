package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"loanprep/internal/config"
	"loanprep/internal/pipeline"
)

const helperEnv = "GO_WANT_MAIN_HELPER"

// TestHelperProcess runs main() in a sub-process. Parent tests invoke the
// test binary as: test-binary -test.run=TestHelperProcess -- <flags...>
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	sep := -1
	for i, a := range args {
		if a == "--" {
			sep = i
			break
		}
	}
	if sep >= 0 && sep+1 < len(args) {
		os.Args = append([]string{args[0]}, args[sep+1:]...)
	} else {
		os.Args = []string{args[0]}
	}
	main()
	os.Exit(0)
}

// runMainSubprocess runs main() with flags in a child process. Metrics are
// forced off so no test talks to a Pushgateway or agent.
func runMainSubprocess(t *testing.T, workdir string, flags ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--")
	cmd.Env = append(os.Environ(), helperEnv+"=1", "METRICS_BACKEND=none")
	cmd.Args = append(cmd.Args, flags...)
	if workdir != "" {
		cmd.Dir = workdir
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

const smallCSV = "Loan_Amnt,Term,Loan_Status\n" +
	"100,36 months,Accepted\n" +
	"200,60 months,Rejected\n" +
	"300,36 months,Current\n"

// TestMain_EndToEnd runs the binary on a tiny file using only flags.
func TestMain_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.csv")
	if err := os.WriteFile(in, []byte(smallCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out", "engineered.csv")

	stdout, stderr, err := runMainSubprocess(t, dir,
		"-input", in, "-output", out, "-sample-rows", "10", "-chunk-size", "5")
	if err != nil {
		t.Fatalf("main failed: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "wrote 2 rows (6 columns)") {
		t.Fatalf("stdout=%q", stdout)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "loan_amnt,term_months,fico_score,term_36 months,term_60 months,target\n" +
		"100,36,0,1,0,1\n" +
		"200,60,0,0,1,0\n"
	if string(got) != want {
		t.Fatalf("output:\n%s\nwant:\n%s", got, want)
	}

	m, err := pipeline.ReadManifest(pipeline.ManifestPath(out))
	if err != nil {
		t.Fatal(err)
	}
	if m.RowsRead != 3 || m.RowsWritten != 2 || m.Dropped != 1 {
		t.Fatalf("manifest=%+v", m)
	}
}

// TestMain_MissingInput checks the exit status and stage diagnostic.
func TestMain_MissingInput(t *testing.T) {
	dir := t.TempDir()
	_, stderr, err := runMainSubprocess(t, dir,
		"-input", filepath.Join(dir, "nope.csv"), "-output", filepath.Join(dir, "o.csv"))
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit=%d want 1; stderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "failed at stage open") {
		t.Fatalf("stderr=%q", stderr)
	}
}

// TestMain_Validate covers -validate on both outcomes, with a config file.
func TestMain_Validate(t *testing.T) {
	dir := t.TempDir()

	_, stderr, err := runMainSubprocess(t, dir, "-validate")
	if code := exitCode(err); code != 1 {
		t.Fatalf("defaults without input: exit=%d want 1", code)
	}
	if !strings.Contains(stderr, "source.file.path") || !strings.Contains(stderr, "sink.path") {
		t.Fatalf("stderr=%q", stderr)
	}

	cfg := filepath.Join(dir, "pipeline.json")
	body := `{"source":{"file":{"path":"raw.csv"}},"sink":{"kind":"parquet","path":"out.parquet"},` +
		`"chunking":{"sample_rows":10,"chunk_size":5}}`
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err = runMainSubprocess(t, dir, "-config", cfg, "-validate")
	if err != nil {
		t.Fatalf("valid config: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stderr, "Configuration is valid") {
		t.Fatalf("stderr=%q", stderr)
	}

	_, stderr, err = runMainSubprocess(t, dir, "-config", cfg, "-chunk-size", "-1", "-validate")
	if code := exitCode(err); code != 1 || !strings.Contains(stderr, "chunking.chunk_size") {
		t.Fatalf("exit=%d stderr=%q", code, stderr)
	}
}

func TestOverridesApply(t *testing.T) {
	t.Parallel()

	base := config.Default()
	base.Sink.Path = "from-file.csv"

	got := overrides{}.apply(base)
	if got.Sink.Path != "from-file.csv" || got.Chunking != base.Chunking {
		t.Fatalf("empty overrides changed the pipeline: %+v", got)
	}

	got = overrides{input: "in.csv.gz", output: "o.parquet", sink: "parquet", sampleRows: 7, chunkSize: 3}.apply(base)
	if got.Source.File.Path != "in.csv.gz" || got.Sink.Path != "o.parquet" || got.Sink.Kind != "parquet" ||
		got.Chunking.SampleRows != 7 || got.Chunking.ChunkSize != 3 {
		t.Fatalf("overrides not applied: %+v", got)
	}
}

func TestPick(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   []string
		want string
	}{
		{[]string{"flag", "env", "def"}, "flag"},
		{[]string{"", "env", "def"}, "env"},
		{[]string{"", "", "def"}, "def"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := pick(c.in...); got != c.want {
			t.Errorf("pick(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestLoadPipeline(t *testing.T) {
	t.Parallel()

	p, err := loadPipeline("")
	if err != nil {
		t.Fatal(err)
	}
	if p.Job != "loanprep" || p.Chunking.SampleRows != 500_000 {
		t.Fatalf("defaults=%+v", p)
	}
	if _, err := loadPipeline(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want os.ErrNotExist", err)
	}
}
