package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/df07/go-surface-scatter/pkg/core"
)

// BuiltinGroup is the group name of the built-in jobs
const BuiltinGroup = "Built-in Jobs"

// jobExtensions are the file types ListJobs picks up
var jobExtensions = []string{".toml", ".yaml", ".yml", ".json"}

// JobInfo represents a discovered job with its metadata
type JobInfo struct {
	ID          string `json:"id"`          // Unique identifier
	Name        string `json:"name"`        // Job name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "file"
	FilePath    string `json:"filePath"`    // Path to the job file (file type only)
	Surfaces    int    `json:"surfaces"`    // Number of surface sources
	Candidates  int    `json:"candidates"`  // Number of candidates
}

// JobGroup represents a group of related jobs
type JobGroup struct {
	Name string    `json:"name"`
	Jobs []JobInfo `json:"jobs"`
}

// JobsResponse represents the complete response for /api/jobs
type JobsResponse struct {
	Groups []JobGroup `json:"groups"`
}

// Info returns the listing metadata of a job
func (j *Job) Info() JobInfo {
	info := JobInfo{
		ID:          j.ID,
		Name:        j.Name,
		Description: j.Description,
		Group:       j.Group,
		Type:        "builtin",
		FilePath:    j.FilePath,
		Surfaces:    len(j.Surfaces),
		Candidates:  len(j.Candidates),
	}
	if j.FilePath != "" {
		info.Type = "file"
		if info.Group == "" {
			info.Group = "Job Files"
		}
	}
	return info
}

// ListJobs scans dir for job files. A missing directory yields an empty list.
// Files that fail to parse are logged and skipped.
func ListJobs(dir string, logger core.Logger) ([]JobInfo, error) {
	if logger == nil {
		logger = core.NopLogger{}
	}
	if _, err := os.Stat(dir); err != nil {
		return []JobInfo{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs directory: %w", err)
	}

	jobs := []JobInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !isJobFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		job, err := LoadJob(path)
		if err != nil {
			logger.Printf("Warning: skipping job file %s: %v\n", path, err)
			continue
		}
		jobs = append(jobs, job.Info())
	}

	// Sort jobs by name
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Name < jobs[j].Name
	})

	return jobs, nil
}

func isJobFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range jobExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListAllJobs returns both built-in and file jobs, grouped by category
func ListAllJobs(dir string, logger core.Logger) (JobsResponse, error) {
	var response JobsResponse

	var all []JobInfo
	for _, job := range BuiltinJobs() {
		all = append(all, job.Info())
	}

	fileJobs, err := ListJobs(dir, logger)
	if err != nil {
		return response, fmt.Errorf("failed to list job files: %w", err)
	}
	all = append(all, fileJobs...)

	// Group jobs by their Group field
	groupMap := make(map[string][]JobInfo)
	for _, job := range all {
		groupMap[job.Group] = append(groupMap[job.Group], job)
	}

	// Create ordered groups (built-in first, then alphabetical)
	var groupNames []string
	for groupName := range groupMap {
		if groupName != BuiltinGroup {
			groupNames = append(groupNames, groupName)
		}
	}
	sort.Strings(groupNames)

	if builtIn, exists := groupMap[BuiltinGroup]; exists {
		response.Groups = append(response.Groups, JobGroup{Name: BuiltinGroup, Jobs: builtIn})
	}
	for _, groupName := range groupNames {
		response.Groups = append(response.Groups, JobGroup{Name: groupName, Jobs: groupMap[groupName]})
	}

	return response, nil
}

// FindJob resolves an ID to a job: built-in IDs first, then "file:<name>" or a
// bare name looked up in dir, then an explicit path to a job file
func FindJob(id, dir string) (*Job, error) {
	if job, ok := BuiltinJob(id); ok {
		return job, nil
	}

	name := strings.TrimPrefix(id, "file:")
	for _, ext := range jobExtensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadJob(path)
		}
	}

	if isJobFile(id) {
		if _, err := os.Stat(id); err == nil {
			return LoadJob(id)
		}
	}

	return nil, fmt.Errorf("unknown job %q", id)
}

// titleCase converts a filename-style string to title case
// e.g., "river-bank" -> "River Bank"
func titleCase(s string) string {
	// Replace hyphens and underscores with spaces
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	// Title case each word
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}
