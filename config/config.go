// Package config loads and validates the collector configuration from a
// YAML file and provides the mutation surface the dashboard uses to edit
// targets and blacklist entries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoTargets = errors.New("no targets configured, add subreddits or users to the config")
	ErrNotFound  = errors.New("configuration file not found")
)

// SubredditTarget describes one subreddit to collect from.
type SubredditTarget struct {
	Name       string `yaml:"name" json:"name"`
	Limit      int    `yaml:"limit" json:"limit"`
	Sort       string `yaml:"sort" json:"sort"`
	TimeFilter string `yaml:"time_filter" json:"time_filter"`
}

// UserTarget describes one user whose submissions are collected.
type UserTarget struct {
	Name  string `yaml:"name" json:"name"`
	Limit int    `yaml:"limit" json:"limit"`
}

type Targets struct {
	Subreddits []SubredditTarget `yaml:"subreddits" json:"subreddits"`
	Users      []UserTarget      `yaml:"users" json:"users"`
}

type Download struct {
	OutputDir               string   `yaml:"output_dir" json:"output_dir"`
	MediaTypes              []string `yaml:"media_types" json:"media_types"`
	MinScore                int      `yaml:"min_score" json:"min_score"`
	SkipNSFW                bool     `yaml:"skip_nsfw" json:"skip_nsfw"`
	MaxFileSizeMB           int      `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	FlatStructure           bool     `yaml:"flat_structure" json:"flat_structure"`
	GenerateSidecar         bool     `yaml:"generate_sidecar" json:"generate_sidecar"`
	VideosOnlyFromFavorites bool     `yaml:"videos_only_from_favorites" json:"videos_only_from_favorites"`
}

type RateLimit struct {
	RequestsPerMinute    int     `yaml:"requests_per_minute" json:"requests_per_minute"`
	DownloadDelaySeconds float64 `yaml:"download_delay_seconds" json:"download_delay_seconds"`
}

type Logging struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Blacklist holds the reject lists consulted by the filter pipeline.
// All entries are lower-cased at load time; title keywords and domains
// match as substrings.
type Blacklist struct {
	Authors       []string `yaml:"authors" json:"authors"`
	Subreddits    []string `yaml:"subreddits" json:"subreddits"`
	TitleKeywords []string `yaml:"title_keywords" json:"title_keywords"`
	Domains       []string `yaml:"domains" json:"domains"`
}

type Config struct {
	Targets   Targets   `yaml:"targets" json:"targets"`
	Download  Download  `yaml:"download" json:"download"`
	RateLimit RateLimit `yaml:"rate_limit" json:"rate_limit"`
	Logging   Logging   `yaml:"logging" json:"logging"`
	Blacklist Blacklist `yaml:"blacklist" json:"blacklist"`
	DBPath    string    `yaml:"db_path" json:"db_path"`
}

// Default returns the configuration used when a section or field is
// absent from the file.
func Default() Config {
	return Config{
		Download: Download{
			OutputDir:       "./downloads",
			MediaTypes:      []string{"image", "video", "gif"},
			MinScore:        10,
			SkipNSFW:        true,
			MaxFileSizeMB:   100,
			FlatStructure:   true,
			GenerateSidecar: true,
		},
		RateLimit: RateLimit{
			RequestsPerMinute:    10,
			DownloadDelaySeconds: 2.0,
		},
		Logging: Logging{
			Level: "info",
			File:  "collector.log",
		},
		DBPath: "media.db",
	}
}

// Load reads and validates the configuration file at path. A missing file
// or an empty target list is fatal to the run.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return Config{}, err
	}
	if len(cfg.Targets.Subreddits) == 0 && len(cfg.Targets.Users) == 0 {
		return Config{}, ErrNoTargets
	}
	return cfg, nil
}

// read parses the file and applies defaults without the target check.
// The dashboard edits configurations through this path, so an empty
// target list stays editable; only a run requires targets.
func read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.Blacklist.normalize()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Targets.Subreddits {
		s := &c.Targets.Subreddits[i]
		if s.Limit == 0 {
			s.Limit = 50
		}
		if s.Sort == "" {
			s.Sort = "hot"
		}
		if s.TimeFilter == "" {
			s.TimeFilter = "all"
		}
	}
	for i := range c.Targets.Users {
		if c.Targets.Users[i].Limit == 0 {
			c.Targets.Users[i].Limit = 30
		}
	}
	if c.Download.OutputDir == "" {
		c.Download.OutputDir = "./downloads"
	}
	if c.Download.MaxFileSizeMB == 0 {
		c.Download.MaxFileSizeMB = 100
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 10
	}
	if c.DBPath == "" {
		c.DBPath = "media.db"
	}
}

func (b *Blacklist) normalize() {
	lower := func(items []string) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			item = strings.ToLower(strings.TrimSpace(item))
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	b.Authors = lower(b.Authors)
	b.Subreddits = lower(b.Subreddits)
	b.TitleKeywords = lower(b.TitleKeywords)
	b.Domains = lower(b.Domains)
}

// Save writes the configuration back to path. Used by the dashboard after
// target or blacklist mutations.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
