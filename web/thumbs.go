package web

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const thumbDir = ".thumbnails"

// Replaceable for tests.
var (
	lookPath   = exec.LookPath
	runCommand = func(name string, args ...string) error {
		return exec.Command(name, args...).Run()
	}
)

// handleThumbnail serves a small preview frame for a downloaded item.
// Images are served as-is; videos get a first-frame JPEG extracted by
// ffmpeg and cached next to the media. Responds 404 when ffmpeg is not
// installed.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.GetPost(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil || rec.LocalPath == "" {
		writeError(w, http.StatusNotFound, "no such media item")
		return
	}

	if rec.MediaType != "video" {
		http.ServeFile(w, r, rec.LocalPath)
		return
	}

	thumb := s.thumbnailPath(rec.LocalPath, id)
	if _, err := os.Stat(thumb); err == nil {
		http.ServeFile(w, r, thumb)
		return
	}

	ffmpeg, err := lookPath("ffmpeg")
	if err != nil {
		writeError(w, http.StatusNotFound, "ffmpeg not installed")
		return
	}
	if err := os.MkdirAll(filepath.Dir(thumb), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := runCommand(ffmpeg,
		"-i", rec.LocalPath,
		"-vframes", "1",
		"-vf", "scale=320:-1",
		"-y", thumb,
	); err != nil {
		log.Err(err).Str("id", id).Msg("thumbnail extraction failed")
		writeError(w, http.StatusNotFound, "thumbnail extraction failed")
		return
	}
	http.ServeFile(w, r, thumb)
}

func (s *Server) thumbnailPath(localPath, id string) string {
	return filepath.Join(filepath.Dir(localPath), thumbDir, id+".jpg")
}

func (s *Server) removeThumbnail(id string) {
	rec, err := s.store.GetPost(id)
	if err != nil || rec == nil || rec.LocalPath == "" {
		return
	}
	os.Remove(s.thumbnailPath(rec.LocalPath, id))
}
