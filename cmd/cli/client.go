package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/and161185/doc-keeper/internal/convert"
	"github.com/and161185/doc-keeper/internal/model"
)

// apiError is a non-2xx response.
type apiError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("http %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// client talks to the DocKeeper HTTP API with a bearer token.
type client struct {
	base  string
	http  *http.Client
	token string
}

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}

func newClient(addr, caPath string, insecure bool, token string) (*client, error) {
	tc, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{}
	if tc != nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = tc
		hc.Transport = tr
	}
	if !strings.Contains(addr, "://") {
		scheme := "http://"
		if tc != nil {
			scheme = "https://"
		}
		addr = scheme + addr
	}
	return &client{base: strings.TrimRight(addr, "/") + "/api/v1", http: hc, token: token}, nil
}

func filePath(loc model.FileLocation) string {
	return "/files/" + url.PathEscape(loc.Project) + "/" + url.PathEscape(loc.Discipline) + "/" +
		url.PathEscape(loc.Phase) + "/" + url.PathEscape(loc.Filename)
}

func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var eb struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(raw, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(raw))
		}
		return nil, &apiError{Status: resp.StatusCode, Message: eb.Error, RequestID: eb.RequestID}
	}
	return resp, nil
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// Token exchanges credentials for a bearer token.
func (c *client) Token(ctx context.Context, username, password string) (convert.Token, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := c.do(ctx, http.MethodPost, "/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return convert.Token{}, err
	}
	defer resp.Body.Close()
	var tok convert.Token
	err = json.NewDecoder(resp.Body).Decode(&tok)
	return tok, err
}

// Tree lists the visible hierarchy.
func (c *client) Tree(ctx context.Context) (convert.Tree, error) {
	var t convert.Tree
	err := c.getJSON(ctx, "/files", &t)
	return t, err
}

// Search matches filenames.
func (c *client) Search(ctx context.Context, keyword string) ([]convert.File, error) {
	var out struct {
		Files []convert.File `json:"files"`
	}
	err := c.getJSON(ctx, "/files/search?q="+url.QueryEscape(keyword), &out)
	return out.Files, err
}

// Logs returns the newest log entries.
func (c *client) Logs(ctx context.Context, limit int) ([]convert.LogEntry, error) {
	path := "/logs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Entries []convert.LogEntry `json:"entries"`
	}
	err := c.getJSON(ctx, path, &out)
	return out.Entries, err
}

// Upload sends r as loc.Filename into loc's phase directory.
func (c *client) Upload(ctx context.Context, loc model.FileLocation, r io.Reader, note string) (convert.Upload, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if note != "" {
				if err := mw.WriteField("note", note); err != nil {
					return err
				}
			}
			fw, err := mw.CreateFormFile("file", loc.Filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		_ = pw.CloseWithError(err)
	}()

	path := "/files/" + url.PathEscape(loc.Project) + "/" + url.PathEscape(loc.Discipline) + "/" + url.PathEscape(loc.Phase)
	resp, err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return convert.Upload{}, err
	}
	defer resp.Body.Close()
	var up convert.Upload
	err = json.NewDecoder(resp.Body).Decode(&up)
	return up, err
}

// Fetch streams a stored file into w. download selects the raw download
// route; otherwise the inline preview route is used. Warnings from the
// server are returned alongside the byte count.
func (c *client) Fetch(ctx context.Context, loc model.FileLocation, download bool, w io.Writer) (int64, []string, error) {
	path := filePath(loc)
	if download {
		path += "/download"
	}
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	return n, resp.Header.Values("X-Log-Warning"), err
}
