package web

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/richardnixondev/reddit-image-collect/config"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg)
}

func (s *Server) handleListSubreddits(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg.Targets.Subreddits)
}

func (s *Server) handleAddSubreddit(w http.ResponseWriter, r *http.Request) {
	var target config.SubredditTarget
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil || target.Name == "" {
		writeError(w, http.StatusBadRequest, "a subreddit name is required")
		return
	}
	added, err := s.manager.AddSubreddit(target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !added {
		writeError(w, http.StatusConflict, "subreddit already configured")
		return
	}
	writeJSONStatus(w, http.StatusCreated, target)
}

func (s *Server) handleDeleteSubreddit(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.RemoveSubreddit(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "subreddit not configured")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg.Targets.Users)
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var target config.UserTarget
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil || target.Name == "" {
		writeError(w, http.StatusBadRequest, "a user name is required")
		return
	}
	added, err := s.manager.AddUser(target)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !added {
		writeError(w, http.StatusConflict, "user already configured")
		return
	}
	writeJSONStatus(w, http.StatusCreated, target)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	removed, err := s.manager.RemoveUser(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "user not configured")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBlacklist(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.Current()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cfg.Blacklist)
}

func blacklistKind(raw string) (config.BlacklistKind, bool) {
	switch raw {
	case "authors":
		return config.BlacklistAuthors, true
	case "subreddits":
		return config.BlacklistSubreddits, true
	case "keywords", "title_keywords":
		return config.BlacklistKeywords, true
	case "domains":
		return config.BlacklistDomains, true
	}
	return "", false
}

func (s *Server) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	kind, ok := blacklistKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown blacklist section")
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == "" {
		writeError(w, http.StatusBadRequest, "a value is required")
		return
	}
	added, err := s.manager.AddBlacklistEntry(kind, body.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !added {
		writeError(w, http.StatusConflict, "entry already blacklisted")
		return
	}
	writeJSONStatus(w, http.StatusCreated, body)
}

func (s *Server) handleDeleteBlacklist(w http.ResponseWriter, r *http.Request) {
	kind, ok := blacklistKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown blacklist section")
		return
	}
	removed, err := s.manager.RemoveBlacklistEntry(kind, r.PathValue("value"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "entry not blacklisted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, stats)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	subreddit := r.URL.Query().Get("subreddit")
	mediaType := r.URL.Query().Get("type")

	items, err := s.store.MediaFiles(limit, offset, subreddit, mediaType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.store.TotalMediaCount(subreddit, mediaType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Distinct subreddits feed the dashboard's filter dropdown.
	subreddits, err := s.store.AllSubreddits()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"items":      items,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
		"subreddits": subreddits,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.RecentDownloads(queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, items)
}

// handleDeleteMedia removes the file, the sidecar and any cached
// thumbnail before the record, so a failed unlink never leaves the store
// pointing at bytes it believes are gone.
func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.GetPost(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no such media item")
		return
	}
	if rec.LocalPath != "" {
		if err := os.Remove(rec.LocalPath); err != nil && !os.IsNotExist(err) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := os.Remove(rec.LocalPath + ".json"); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("id", id).Msg("removing sidecar failed")
		}
	}
	s.removeThumbnail(id)
	if err := s.store.DeletePost(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Favorites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, items)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	added, err := s.store.AddFavorite(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !added {
		writeError(w, http.StatusConflict, "unknown post or already favorited")
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]string{"post_id": id})
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	removed, err := s.store.RemoveFavorite(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not favorited")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
