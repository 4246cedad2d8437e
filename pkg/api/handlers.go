package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/engine"
	"github.com/marmos91/tgcloud/pkg/models"
)

type fileHandler struct {
	engine *engine.Engine
}

// fileInfo is the wire representation of one stored file.
type fileInfo struct {
	FileID    string    `json:"file_id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Chunks    int       `json:"chunks"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

func toFileInfo(m models.FileMetadata) fileInfo {
	return fileInfo{
		FileID:    m.FileID,
		Name:      m.OriginalName,
		Size:      m.Size,
		Chunks:    m.TotalChunks,
		SHA256:    m.SHA256,
		CreatedAt: m.CreatedAt,
	}
}

func (h *fileHandler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.engine.ListFiles(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]fileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, toFileInfo(f))
	}
	writeData(w, http.StatusOK, out)
}

// upload accepts a multipart form with a "file" part and an optional "name"
// field (which must precede the file part to take effect on naming). The
// body is spooled to a temp file because chunk uploads re-read their byte
// ranges on retry, which a network stream cannot support.
func (h *fileHandler) upload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Status:    "error",
			Timestamp: time.Now().UTC(),
			Error:     "expected multipart form upload",
		})
		return
	}

	var name, fileName, tmpPath string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, fmt.Errorf("reading multipart body: %w", err))
			return
		}

		switch part.FormName() {
		case "name":
			b, err := io.ReadAll(io.LimitReader(part, 4096))
			if err != nil {
				writeError(w, fmt.Errorf("reading name field: %w", err))
				return
			}
			name = string(b)
		case "file":
			fileName = part.FileName()
			tmpPath, err = spoolPart(part)
			if err != nil {
				writeError(w, err)
				return
			}
			defer os.Remove(tmpPath)
		}
	}

	if tmpPath == "" {
		writeJSON(w, http.StatusBadRequest, Response{
			Status:    "error",
			Timestamp: time.Now().UTC(),
			Error:     `missing "file" part`,
		})
		return
	}
	if name == "" {
		name = fileName
	}

	if err := h.engine.UploadFileAs(r.Context(), tmpPath, name, nil); err != nil {
		writeError(w, err)
		return
	}

	meta, err := h.engine.FileByName(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, toFileInfo(*meta))
}

func spoolPart(part io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "tgcloud-upload-*")
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}
	if _, err := io.Copy(tmp, part); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("spooling upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// download reassembles the file into a temp directory and streams it back.
// The engine verifies the stored digest before any byte leaves the server.
func (h *fileHandler) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	dir, err := os.MkdirTemp("", "tgcloud-download-*")
	if err != nil {
		writeError(w, err)
		return
	}
	defer os.RemoveAll(dir)

	outPath := filepath.Join(dir, "payload")
	if err := h.engine.DownloadFile(r.Context(), name, outPath, nil); err != nil {
		writeError(w, err)
		return
	}

	f, err := os.Open(outPath)
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": filepath.Base(name)}))
	http.ServeContent(w, r, filepath.Base(name), time.Time{}, f)
}

type renameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *fileHandler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Status:    "error",
			Timestamp: time.Now().UTC(),
			Error:     "invalid JSON body",
		})
		return
	}
	if req.From == "" || req.To == "" {
		writeJSON(w, http.StatusBadRequest, Response{
			Status:    "error",
			Timestamp: time.Now().UTC(),
			Error:     `both "from" and "to" are required`,
		})
		return
	}

	if err := h.engine.RenameFile(r.Context(), req.From, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"from": req.From, "to": req.To})
}

func (h *fileHandler) delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")

	if err := h.engine.DeleteFile(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	logger.Info("file deleted via api", "name", name)
	writeData(w, http.StatusOK, map[string]string{"deleted": name})
}
