package collector

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/richardnixondev/reddit-image-collect/filter"
)

// Stats counts every outcome of a collection run.
type Stats struct {
	Processed        int `json:"processed"`
	Downloaded       int `json:"downloaded"`
	SkippedExists    int `json:"skipped_exists"`
	SkippedNoMedia   int `json:"skipped_no_media"`
	SkippedScore     int `json:"skipped_score"`
	SkippedNSFW      int `json:"skipped_nsfw"`
	SkippedBlacklist int `json:"skipped_blacklist"`
	SkippedType      int `json:"skipped_type"`
	Errors           int `json:"errors"`
}

func (s *Stats) countRejection(reason filter.Reason) {
	switch reason {
	case filter.ReasonNSFW:
		s.SkippedNSFW++
	case filter.ReasonScore:
		s.SkippedScore++
	case filter.ReasonBlacklist, filter.ReasonDomain:
		s.SkippedBlacklist++
	case filter.ReasonMediaType, filter.ReasonFavorites:
		s.SkippedType++
	}
}

// WriteTable renders the run summary.
func (s Stats) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Outcome", "Count"})
	table.SetAutoWrapText(false)
	for _, row := range [][2]string{
		{"Posts processed", strconv.Itoa(s.Processed)},
		{"New downloads", strconv.Itoa(s.Downloaded)},
		{"Skipped (already exists)", strconv.Itoa(s.SkippedExists)},
		{"Skipped (no media)", strconv.Itoa(s.SkippedNoMedia)},
		{"Skipped (low score)", strconv.Itoa(s.SkippedScore)},
		{"Skipped (NSFW)", strconv.Itoa(s.SkippedNSFW)},
		{"Skipped (blacklist)", strconv.Itoa(s.SkippedBlacklist)},
		{"Skipped (media type)", strconv.Itoa(s.SkippedType)},
		{"Errors", strconv.Itoa(s.Errors)},
	} {
		table.Append(row[:])
	}
	table.Render()
}
