package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/doc-keeper/internal/convert"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "dockeeper")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	require.Equal(t, base, cfgDir())
	require.Equal(t, filepath.Join(base, "token.json"), tokenPath())
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	_, err := loadToken()
	require.ErrorContains(t, err, "not logged in")

	require.NoError(t, saveToken("h:1", "tok", time.Now().Add(time.Minute)))
	tok, err := loadToken()
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	info, err := os.Stat(tokenPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, saveToken("h:1", "tok2", time.Now().Add(-time.Minute)))
	_, err = loadToken()
	require.Error(t, err, "expired token")
}

func Test_parseLoc(t *testing.T) {
	t.Parallel()
	loc, err := parseLoc("/ProjA/Civil/Design/spec.pdf")
	require.NoError(t, err)
	require.Equal(t, "ProjA", loc.Project)
	require.Equal(t, "spec.pdf", loc.Filename)

	for _, bad := range []string{"a/b/c", "a/b/c/d/e", "a//c/d", ""} {
		_, err := parseLoc(bad)
		require.Error(t, err, bad)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printJSON(&buf, map[string]int{"a": 1})
	require.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

// fakeAPI serves the subset of routes the CLI calls.
type fakeAPI struct {
	t        *testing.T
	uploaded map[string]string
	notes    map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/token" && r.Header.Get("Authorization") != "Bearer good-token" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "request_id": "rid-1"})
		return
	}
	switch {
	case r.URL.Path == "/api/v1/token":
		var c struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(convert.Token{
			AccessToken: "good-token",
			ExpiresAt:   time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
	case r.URL.Path == "/api/v1/files":
		_ = json.NewEncoder(w).Encode(convert.Tree{Projects: []convert.Project{{
			Name: "P", Disciplines: []convert.Discipline{{Name: "D", Phases: []convert.Phase{{
				Name: "F", Files: []convert.File{{Filename: "a.pdf", Kind: "pdf", Size: 3}},
			}}}},
		}}})
	case r.URL.Path == "/api/v1/files/search":
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []convert.File{{Path: "P/D/F/" + r.URL.Query().Get("q") + ".pdf"}}})
	case r.URL.Path == "/api/v1/logs":
		require.Equal(f.t, "7", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{"entries": []convert.LogEntry{{User: "alice", Action: "upload", File: "x"}}})
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v1/files/"):
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(f.t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		var name, body, note string
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(f.t, err)
			b, _ := io.ReadAll(p)
			if p.FormName() == "note" {
				note = string(b)
				continue
			}
			name, body = p.FileName(), string(b)
		}
		key := strings.TrimPrefix(r.URL.Path, "/api/v1/files/") + "/" + name
		f.uploaded[key] = body
		f.notes[key] = note
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(convert.Upload{Path: key, Size: int64(len(body))})
	case strings.HasSuffix(r.URL.Path, "/download"):
		w.Header().Add("X-Log-Warning", "log write failure")
		_, _ = io.WriteString(w, "raw-bytes")
	default:
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
	}
}

func runCLI(t *testing.T, addr string, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(append([]string{"--addr", addr}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestCLI_EndToEnd(t *testing.T) {
	_ = withTmpConfig(t)
	api := &fakeAPI{t: t, uploaded: map[string]string{}, notes: map[string]string{}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, _, err := runCLI(t, srv.URL, nil, "ls")
	require.ErrorContains(t, err, "not logged in")

	_, _, err = runCLI(t, srv.URL, nil, "login", "-u", "alice", "-p", "bad")
	var ae *apiError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusUnauthorized, ae.Status)
	require.Equal(t, "invalid credentials", ae.Message)

	out, _, err := runCLI(t, srv.URL, nil, "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)
	require.Equal(t, "ok\n", out)

	out, _, err = runCLI(t, srv.URL, nil, "ls")
	require.NoError(t, err)
	require.Contains(t, out, "[pdf] a.pdf (3B)")

	out, _, err = runCLI(t, srv.URL, nil, "search", "report")
	require.NoError(t, err)
	require.Equal(t, "P/D/F/report.pdf\n", out)

	src := filepath.Join(t.TempDir(), "spec.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF"), 0o600))
	out, _, err = runCLI(t, srv.URL, nil, "upload", "--project", "P", "--discipline", "D", "--phase", "F", "--note", "rev a", src)
	require.NoError(t, err)
	require.Contains(t, out, `"path": "P/D/F/spec.pdf"`)
	require.Equal(t, "%PDF", api.uploaded["P/D/F/spec.pdf"])
	require.Equal(t, "rev a", api.notes["P/D/F/spec.pdf"])

	_, _, err = runCLI(t, srv.URL, strings.NewReader("x"), "upload", "--project", "P", "--discipline", "D", "--phase", "F", "-")
	require.ErrorContains(t, err, "--name")
	_, _, err = runCLI(t, srv.URL, strings.NewReader("stdin-bytes"), "upload", "--project", "P", "--discipline", "D", "--phase", "F", "--name", "s.txt", "-")
	require.NoError(t, err)
	require.Equal(t, "stdin-bytes", api.uploaded["P/D/F/s.txt"])

	dst := filepath.Join(t.TempDir(), "out.bin")
	_, errOut, err := runCLI(t, srv.URL, nil, "download", "P/D/F/spec.pdf", "-o", dst)
	require.NoError(t, err)
	require.Contains(t, errOut, "warning: log write failure")
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "raw-bytes", string(got))

	_, _, err = runCLI(t, srv.URL, nil, "view", "P/D/F/spec.pdf")
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusForbidden, ae.Status)

	out, _, err = runCLI(t, srv.URL, nil, "log", "--limit", "7")
	require.NoError(t, err)
	require.Contains(t, out, "alice")

	_, _, err = runCLI(t, srv.URL, nil, "logout")
	require.NoError(t, err)
	_, _, err = runCLI(t, srv.URL, nil, "ls")
	require.ErrorContains(t, err, "not logged in")
}

func TestClient_ErrorCarriesRequestID(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(&fakeAPI{t: t})
	defer srv.Close()
	c, err := newClient(srv.URL, "", false, "wrong")
	require.NoError(t, err)
	_, err = c.Tree(t.Context())
	var ae *apiError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "rid-1", ae.RequestID)
	require.Contains(t, ae.Error(), "request rid-1")
}

func TestNewClient_Schemes(t *testing.T) {
	t.Parallel()
	c, err := newClient("localhost:8080", "", false, "")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api/v1", c.base)

	c, err = newClient("example.org:443", "", true, "")
	require.NoError(t, err)
	require.Equal(t, "https://example.org:443/api/v1", c.base)

	_, err = newClient("x", filepath.Join(t.TempDir(), "missing.pem"), false, "")
	require.Error(t, err)
}
