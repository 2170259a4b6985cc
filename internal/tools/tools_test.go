package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/YumaSeno/AIDeveloper/internal/config"
	"github.com/YumaSeno/AIDeveloper/internal/sandbox"
	"github.com/YumaSeno/AIDeveloper/internal/tool"
	"github.com/YumaSeno/AIDeveloper/internal/workspace"
)

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), "todo")
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	return ws
}

func newTestRegistry(t *testing.T, ws *workspace.Workspace, cfg config.ToolsConfig, runner CommandRunner) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	if err := Register(reg, ws, cfg, runner); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func testToolsConfig(searchURL string) config.ToolsConfig {
	return config.ToolsConfig{
		HTTPTimeout:  5 * time.Second,
		MaxBodyBytes: 64,
		SearchURL:    searchURL,
		ShellTimeout: time.Second,
		MaxOutput:    16,
	}
}

func args(name, payload string) map[string]json.RawMessage {
	return map[string]json.RawMessage{name: json.RawMessage(payload)}
}

func TestRegisterSkipsShellWithoutRunner(t *testing.T) {
	reg := newTestRegistry(t, newTestWorkspace(t), testToolsConfig(""), nil)
	want := []string{FileReaderName, FileWriterName, WebSearchName, GetHTTPContentsName, GetImageName}
	if got := reg.Names(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v", got)
	}
	reg = newTestRegistry(t, newTestWorkspace(t), testToolsConfig(""), &fakeRunner{})
	if _, ok := reg.Get(ShellCommandName); !ok {
		t.Error("shell tool not registered")
	}
}

func TestFileWriterAndReader(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := newTestRegistry(t, ws, testToolsConfig(""), nil)
	ctx := context.Background()

	res := reg.Dispatch(ctx, FileWriterName, args(FileWriterName,
		`{"artifacts":[{"filename":"docs/req.md","contents":"# Requirements"},{"filename":"main.go","contents":"package main"}]}`))
	if res.Error {
		t.Fatalf("write failed: %s", res.Text())
	}
	if res.Text() != "wrote 2 file(s)" {
		t.Errorf("write result = %q", res.Text())
	}

	res = reg.Dispatch(ctx, FileReaderName, args(FileReaderName, `{"filenames":["docs/req.md","nope.txt"]}`))
	if res.Error {
		t.Fatalf("read failed: %s", res.Text())
	}
	var files map[string]string
	if err := json.Unmarshal(res.Result, &files); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if files["docs/req.md"] != "# Requirements" {
		t.Errorf("content = %q", files["docs/req.md"])
	}
	if !strings.Contains(files["nope.txt"], "not found") {
		t.Errorf("missing file = %q", files["nope.txt"])
	}

	res = reg.Dispatch(ctx, FileWriterName, args(FileWriterName, `{"artifacts":[{"filename":"../escape.txt","contents":"x"}]}`))
	if !res.Error {
		t.Error("expected escaping write to fail")
	}
}

func TestFileOmitHooks(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := newTestRegistry(t, ws, testToolsConfig(""), nil)

	writer, _ := reg.Get(FileWriterName)
	out := writer.OmitArgs(30, json.RawMessage(`{"artifacts":[{"filename":"a.md","contents":"long text"}]}`))
	var wargs FileWriterArgs
	if err := json.Unmarshal(out, &wargs); err != nil {
		t.Fatal(err)
	}
	if wargs.Artifacts[0].Filename != "a.md" || wargs.Artifacts[0].Contents != omitted {
		t.Errorf("omitted args = %+v", wargs)
	}

	reader, _ := reg.Get(FileReaderName)
	long := strings.Repeat("x", omitContentOver+1)
	raw, _ := json.Marshal(map[string]string{"short.txt": "hi", "long.txt": long})
	var files map[string]string
	if err := json.Unmarshal(reader.OmitResult(30, raw), &files); err != nil {
		t.Fatal(err)
	}
	if files["short.txt"] != "hi" || files["long.txt"] != omitted {
		t.Errorf("omitted result = %v", files)
	}
}

func TestGetImage(t *testing.T) {
	ws := newTestWorkspace(t)
	if err := ws.SaveArtifact("shots/home.png", "\x89PNG"); err != nil {
		t.Fatal(err)
	}
	reg := newTestRegistry(t, ws, testToolsConfig(""), nil)

	res := reg.Dispatch(context.Background(), GetImageName, args(GetImageName, `{"filePath":"shots/home.png"}`))
	if res.Error {
		t.Fatalf("get image: %s", res.Text())
	}
	tl, _ := reg.Get(GetImageName)
	at, ok := tl.(tool.AttachmentTool)
	if !ok {
		t.Fatal("image tool does not carry attachments")
	}
	att, err := at.Attachment(res.Result)
	if err != nil {
		t.Fatalf("attachment: %v", err)
	}
	if att.MIMEType != "image/png" || string(att.Data) != "\x89PNG" {
		t.Errorf("attachment = %s %q", att.MIMEType, att.Data)
	}

	var img Image
	_ = json.Unmarshal(res.Result, &img)
	if img.Data != base64.StdEncoding.EncodeToString([]byte("\x89PNG")) {
		t.Error("result is not base64 encoded")
	}

	res = reg.Dispatch(context.Background(), GetImageName, args(GetImageName, `{"filePath":"missing.jpg"}`))
	if !res.Error {
		t.Error("expected missing image to fail")
	}
	if imageType("x.unknown") != "image/jpeg" {
		t.Error("default mime type should be image/jpeg")
	}
}

const searchPage = `<html><body><div id="links">
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="https://go.dev/">The Go  Programming Language</a></h2>
  <a class="result__snippet" href="https://go.dev/">Go is an <b>open source</b> language.</a>
</div>
<div class="result results_links web-result">
  <h2 class="result__title"><a class="result__a" href="https://pkg.go.dev/">Go Packages</a></h2>
</div>
<div class="result"><span>no link here</span></div>
</div></body></html>`

func TestWebSearch(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Query().Get("q") == "nothing" {
			_, _ = w.Write([]byte("<html><body></body></html>"))
			return
		}
		_, _ = w.Write([]byte(searchPage))
	}))
	t.Cleanup(srv.Close)

	cfg := testToolsConfig(srv.URL + "/html")
	cfg.MaxBodyBytes = 1 << 20
	reg := newTestRegistry(t, newTestWorkspace(t), cfg, nil)

	res := reg.Dispatch(context.Background(), WebSearchName, args(WebSearchName, `{"query":"golang"}`))
	if res.Error {
		t.Fatalf("search: %s", res.Text())
	}
	if gotQuery != "golang" || gotUA == "" {
		t.Errorf("query = %q, user agent = %q", gotQuery, gotUA)
	}
	var out SearchResults
	if err := json.Unmarshal(res.Result, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %+v", out.Results)
	}
	first := out.Results[0]
	if first.Title != "The Go Programming Language" || first.URL != "https://go.dev/" || first.Snippet != "Go is an open source language." {
		t.Errorf("first = %+v", first)
	}

	res = reg.Dispatch(context.Background(), WebSearchName, args(WebSearchName, `{"query":"nothing"}`))
	_ = json.Unmarshal(res.Result, &out)
	if res.Error || out.Note != noResults || len(out.Results) != 0 {
		t.Errorf("empty search = %s", res.Result)
	}

	search, _ := reg.Get(WebSearchName)
	raw, _ := json.Marshal(SearchResults{Results: []SearchResult{{Title: "t", URL: "u", Snippet: "s"}}})
	var fresh, stale SearchResults
	_ = json.Unmarshal(search.OmitResult(4, raw), &fresh)
	_ = json.Unmarshal(search.OmitResult(5, raw), &stale)
	if fresh.Results[0].Snippet != "s" || stale.Results[0].Snippet != "omitted" {
		t.Errorf("fresh = %+v, stale = %+v", fresh, stale)
	}
}

func TestGetHTTPContents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gzip":
			w.Header().Set("Content-Encoding", "gzip")
			zw := gzip.NewWriter(w)
			_, _ = zw.Write([]byte("compressed hello"))
			_ = zw.Close()
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		case "/missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte("plain hello"))
		}
	}))
	t.Cleanup(srv.Close)

	reg := newTestRegistry(t, newTestWorkspace(t), testToolsConfig(""), nil)
	fetch := func(path string) (string, bool) {
		res := reg.Dispatch(context.Background(), GetHTTPContentsName,
			args(GetHTTPContentsName, `{"url":"`+srv.URL+path+`"}`))
		return res.Text(), res.Error
	}

	if body, isErr := fetch("/"); isErr || body != "plain hello" {
		t.Errorf("plain = %q (error %v)", body, isErr)
	}
	if body, isErr := fetch("/gzip"); isErr || body != "compressed hello" {
		t.Errorf("gzip = %q (error %v)", body, isErr)
	}
	if body, isErr := fetch("/big"); isErr || body != strings.Repeat("a", 64)+"\n(truncated)" {
		t.Errorf("big = %q (error %v)", body, isErr)
	}
	if body, isErr := fetch("/missing"); !isErr || !strings.Contains(body, "404") {
		t.Errorf("missing = %q (error %v)", body, isErr)
	}
}

type fakeRunner struct {
	result  sandbox.Result
	err     error
	command string
	bounded bool
}

func (f *fakeRunner) Run(ctx context.Context, command string) (sandbox.Result, error) {
	f.command = command
	_, f.bounded = ctx.Deadline()
	return f.result, f.err
}

func (f *fakeRunner) Workdir() string { return "/workspace/todo" }

func TestShellCommand(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{ExitCode: 2, Stdout: strings.Repeat("o", 20), Stderr: "bad"}}
	reg := newTestRegistry(t, newTestWorkspace(t), testToolsConfig(""), runner)

	res := reg.Dispatch(context.Background(), ShellCommandName, args(ShellCommandName, `{"command":"make test"}`))
	if res.Error {
		t.Fatalf("shell: %s", res.Text())
	}
	if runner.command != "make test" || !runner.bounded {
		t.Errorf("command = %q, bounded = %v", runner.command, runner.bounded)
	}
	var out ShellResult
	if err := json.Unmarshal(res.Result, &out); err != nil {
		t.Fatal(err)
	}
	if out.ExitCode != 2 || out.Stderr != "bad" || out.Stdout != strings.Repeat("o", 16)+"\n(truncated)" {
		t.Errorf("result = %+v", out)
	}

	runner.err = sandbox.ErrTimedOut
	res = reg.Dispatch(context.Background(), ShellCommandName, args(ShellCommandName, `{"command":"sleep 999"}`))
	if !res.Error || res.Text() != "timed out" {
		t.Errorf("timeout result = %+v", res)
	}

	runner.err = errors.New("docker unavailable")
	res = reg.Dispatch(context.Background(), ShellCommandName, args(ShellCommandName, `{"command":"ls"}`))
	if !res.Error || !strings.Contains(res.Text(), "docker unavailable") {
		t.Errorf("error result = %+v", res)
	}
}

func TestKeepTail(t *testing.T) {
	if keepTail("short", 10) != "short" {
		t.Error("short output changed")
	}
	if got := keepTail("0123456789", 3); got != omitted+" ...789" {
		t.Errorf("tail = %q", got)
	}
}
