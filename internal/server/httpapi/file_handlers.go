package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/doc-keeper/internal/convert"
	"github.com/and161185/doc-keeper/internal/errs"
	"github.com/and161185/doc-keeper/internal/model"
	"github.com/and161185/doc-keeper/internal/service"
)

// WarningHeader carries non-fatal warnings on binary responses.
const WarningHeader = "X-Log-Warning"

const multipartMemory = 8 << 20

func locationFrom(r *http.Request) model.FileLocation {
	v := mux.Vars(r)
	return model.FileLocation{
		Project:    v["project"],
		Discipline: v["discipline"],
		Phase:      v["phase"],
		Filename:   v["filename"],
	}
}

func (s *Server) tree(w http.ResponseWriter, r *http.Request) {
	t, err := s.docs.Tree(r.Context(), mustUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToTree(t, s.rel))
}

type searchResponse struct {
	Keyword string         `json:"keyword"`
	Files   []convert.File `json:"files"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	found, err := s.docs.Search(r.Context(), mustUser(r), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Keyword: q, Files: convert.ToFiles(found, s.rel)})
}

// upload accepts multipart fields "file" and an optional "note".
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: multipart: %w", errs.ErrInvalidInput, err)
		}
		s.fail(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: missing file field", errs.ErrInvalidInput))
		return
	}
	defer f.Close()

	loc := locationFrom(r)
	loc.Filename = hdr.Filename
	res, err := s.docs.Upload(r.Context(), mustUser(r), loc, f, r.FormValue("note"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToUpload(res, s.rel))
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	op, err := s.docs.Preview(r.Context(), mustUser(r), locationFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveFile(w, r, op, "inline")
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	op, err := s.docs.Download(r.Context(), mustUser(r), locationFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveFile(w, r, op, "attachment")
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, op service.Opened, disposition string) {
	defer func() {
		if err := op.File.Close(); err != nil {
			s.log.Warn("close stored file", zap.String("path", op.Info.Path), zap.Error(err))
		}
	}()
	for _, warn := range op.Warnings {
		w.Header().Add(WarningHeader, warn)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": op.Info.Filename}))
	w.Header().Set("X-File-Kind", string(op.Info.Kind))
	http.ServeContent(w, r, op.Info.Filename, op.Info.ModTime, op.File)
}

type logsResponse struct {
	Entries []convert.LogEntry `json:"entries"`
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	limit := s.logTail
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, fmt.Errorf("%w: limit %q", errs.ErrInvalidInput, v))
			return
		}
		limit = n
	}
	es, err := s.docs.LogTail(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: convert.ToLogEntries(es)})
}
