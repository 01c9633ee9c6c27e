package config

import (
	"strings"
	"sync"
)

// Manager serializes dashboard edits to the configuration file. Mutations
// reload the file first so concurrent hand edits are not clobbered, apply
// the change, and write it back.
type Manager struct {
	mu   sync.Mutex
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

// Current returns the configuration as it exists on disk right now. The
// target-list validation is skipped here: a configuration with zero
// targets is still viewable and editable.
func (m *Manager) Current() (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return read(m.path)
}

func (m *Manager) mutate(apply func(*Config) bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := read(m.path)
	if err != nil {
		return false, err
	}
	if !apply(&data) {
		return false, nil
	}
	return true, Save(m.path, data)
}

// AddSubreddit appends a subreddit target. Returns false if a target with
// the same name (case-insensitive) already exists.
func (m *Manager) AddSubreddit(t SubredditTarget) (bool, error) {
	if t.Limit == 0 {
		t.Limit = 50
	}
	if t.Sort == "" {
		t.Sort = "hot"
	}
	if t.TimeFilter == "" {
		t.TimeFilter = "all"
	}
	return m.mutate(func(cfg *Config) bool {
		for _, existing := range cfg.Targets.Subreddits {
			if strings.EqualFold(existing.Name, t.Name) {
				return false
			}
		}
		cfg.Targets.Subreddits = append(cfg.Targets.Subreddits, t)
		return true
	})
}

func (m *Manager) RemoveSubreddit(name string) (bool, error) {
	return m.mutate(func(cfg *Config) bool {
		kept := cfg.Targets.Subreddits[:0]
		removed := false
		for _, t := range cfg.Targets.Subreddits {
			if strings.EqualFold(t.Name, name) {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		cfg.Targets.Subreddits = kept
		return removed
	})
}

func (m *Manager) AddUser(t UserTarget) (bool, error) {
	if t.Limit == 0 {
		t.Limit = 30
	}
	return m.mutate(func(cfg *Config) bool {
		for _, existing := range cfg.Targets.Users {
			if strings.EqualFold(existing.Name, t.Name) {
				return false
			}
		}
		cfg.Targets.Users = append(cfg.Targets.Users, t)
		return true
	})
}

func (m *Manager) RemoveUser(name string) (bool, error) {
	return m.mutate(func(cfg *Config) bool {
		kept := cfg.Targets.Users[:0]
		removed := false
		for _, t := range cfg.Targets.Users {
			if strings.EqualFold(t.Name, name) {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		cfg.Targets.Users = kept
		return removed
	})
}

// BlacklistKind names one of the four blacklist sections.
type BlacklistKind string

const (
	BlacklistAuthors    BlacklistKind = "authors"
	BlacklistSubreddits BlacklistKind = "subreddits"
	BlacklistKeywords   BlacklistKind = "title_keywords"
	BlacklistDomains    BlacklistKind = "domains"
)

func blacklistSection(b *Blacklist, kind BlacklistKind) *[]string {
	switch kind {
	case BlacklistAuthors:
		return &b.Authors
	case BlacklistSubreddits:
		return &b.Subreddits
	case BlacklistKeywords:
		return &b.TitleKeywords
	case BlacklistDomains:
		return &b.Domains
	}
	return nil
}

// AddBlacklistEntry lower-cases value and appends it to the named section.
func (m *Manager) AddBlacklistEntry(kind BlacklistKind, value string) (bool, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false, nil
	}
	return m.mutate(func(cfg *Config) bool {
		section := blacklistSection(&cfg.Blacklist, kind)
		if section == nil {
			return false
		}
		for _, existing := range *section {
			if existing == value {
				return false
			}
		}
		*section = append(*section, value)
		return true
	})
}

func (m *Manager) RemoveBlacklistEntry(kind BlacklistKind, value string) (bool, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	return m.mutate(func(cfg *Config) bool {
		section := blacklistSection(&cfg.Blacklist, kind)
		if section == nil {
			return false
		}
		kept := (*section)[:0]
		removed := false
		for _, existing := range *section {
			if existing == value {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}
		*section = kept
		return removed
	})
}
