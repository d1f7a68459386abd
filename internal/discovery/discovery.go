// Package discovery scans a directory tree and produces a service topology.
//
// Detection is table-driven: an ordered marker-file table maps language
// manifests to languages, and an ordered name-pattern table maps directory
// base names to service types. The two tables fire independently; a directory
// that matches neither is dropped from the result unless it is the scan root.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"vortex/internal/constants"
	"vortex/internal/errors"
	"vortex/internal/logger"
	"vortex/internal/types"
)

// Entry is one discovered service candidate
type Entry struct {
	// RelPath is the path relative to the scan root ("." for the root itself)
	RelPath     string
	Language    types.Language
	ServiceType types.ServiceType
	// Confidence reflects how many detection signals fired; it informs port
	// suggestions only and is discarded once a workspace spec is compiled
	Confidence float64
}

// Project is the transient output of a scan. It is never persisted.
type Project struct {
	RootPath string
	Name     string
	Entries  []Entry

	// Git metadata, best effort; empty when the root is not a repository
	GitBranch string
	GitRemote string

	// DevcontainerPath is set when the root carries a devcontainer descriptor
	DevcontainerPath string
}

// markerRule maps a language manifest file to a language
type markerRule struct {
	file     string
	language types.Language
}

// markerRules is ordered; the first matching file wins for a directory
var markerRules = []markerRule{
	{"package.json", types.LanguageNode},
	{"requirements.txt", types.LanguagePython},
	{"pyproject.toml", types.LanguagePython},
	{"setup.py", types.LanguagePython},
	{"go.mod", types.LanguageGo},
	{"Cargo.toml", types.LanguageRust},
	{"composer.json", types.LanguagePhp},
	{"Gemfile", types.LanguageRuby},
	{"build.sbt", types.LanguageScala},
	{"pom.xml", types.LanguageJava},
	{"build.gradle", types.LanguageJava},
}

// nameRule maps directory base-name patterns to a service type
type nameRule struct {
	patterns    []string
	serviceType types.ServiceType
}

// nameRules is ordered by precedence; the first rule with a matching pattern
// wins. Matching is case-insensitive substring.
var nameRules = []nameRule{
	{[]string{"frontend", "web", "ui", "client"}, types.ServiceTypeFrontend},
	{[]string{"backend", "api", "server"}, types.ServiceTypeBackend},
	{[]string{"worker", "jobs", "tasks"}, types.ServiceTypeWorker},
	{[]string{"database", "db", "postgres", "migrations"}, types.ServiceTypeDatabase},
	{[]string{"cache", "redis"}, types.ServiceTypeCache},
	{[]string{"queue", "nats", "rabbitmq"}, types.ServiceTypeQueue},
}

// ignoredDirs are dependency and build trees the scanner never descends into
var ignoredDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
}

// DetectLanguage tests a directory against the marker-file table
func DetectLanguage(dir string) types.Language {
	for _, rule := range markerRules {
		if _, err := os.Stat(filepath.Join(dir, rule.file)); err == nil {
			return rule.language
		}
	}
	return types.LanguageUnknown
}

// DetectServiceType tests a directory base name against the name-pattern table
func DetectServiceType(baseName string) types.ServiceType {
	lower := strings.ToLower(baseName)
	for _, rule := range nameRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(lower, pattern) {
				return rule.serviceType
			}
		}
	}
	return types.ServiceTypeUnknown
}

// Scanner walks a project directory tree
type Scanner struct {
	maxDepth int
}

// NewScanner creates a scanner with the given depth bound; anything
// below 1 falls back to the default scan depth.
func NewScanner(maxDepth int) *Scanner {
	if maxDepth < 1 {
		maxDepth = constants.DefaultScanDepth
	}
	return &Scanner{maxDepth: maxDepth}
}

// Scan walks root up to the configured depth and returns the discovered
// topology. The scan is idempotent and side-effect free: it reads only
// within root and never touches the network. Symlinks are not followed.
func (s *Scanner) Scan(root string) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.InvalidPath(root, err.Error())
	}
	info, err := os.Lstat(absRoot)
	if err != nil {
		return nil, errors.InvalidPath(root, "not readable").WithCause(err)
	}
	if !info.IsDir() {
		return nil, errors.InvalidPath(root, "not a directory")
	}

	project := &Project{
		RootPath: absRoot,
		Name:     filepath.Base(absRoot),
	}
	s.detectGitMetadata(project)
	s.detectDevcontainer(project)

	var entries []Entry
	s.walk(absRoot, absRoot, 0, &entries)

	// The root joins the result when it carries its own language marker, or
	// when nothing else matched, so single-service projects still produce
	// one service.
	if !hasRootEntry(entries) {
		lang := DetectLanguage(absRoot)
		st := DetectServiceType(project.Name)
		confidence := 0.2
		if lang != types.LanguageUnknown {
			confidence = 0.8
		}
		if len(entries) == 0 || lang != types.LanguageUnknown {
			entries = append(entries, Entry{
				RelPath:     ".",
				Language:    lang,
				ServiceType: st,
				Confidence:  confidence,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RelPath < entries[j].RelPath
	})
	project.Entries = entries

	logger.WithFields(logger.Fields{
		"root":     absRoot,
		"services": len(entries),
	}).Debug("Project scan complete")

	return project, nil
}

func (s *Scanner) walk(root, dir string, depth int, entries *[]Entry) {
	if depth > 0 {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return
		}
		if entry, ok := s.inspect(dir, rel); ok {
			*entries = append(*entries, entry)
			// A detected service directory is a leaf for scanning purposes;
			// its own subtree belongs to that service.
			return
		}
	}

	if depth >= s.maxDepth {
		return
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		logger.WithError(err).WithField("dir", dir).Debug("Skipping unreadable directory")
		return
	}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		if ignoredDirs[de.Name()] || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		// Lstat guards against symlinked directories; ReadDir already reports
		// symlinks as non-dirs, this keeps the invariant explicit.
		child := filepath.Join(dir, de.Name())
		if fi, err := os.Lstat(child); err != nil || fi.Mode()&os.ModeSymlink != 0 {
			continue
		}
		s.walk(root, child, depth+1, entries)
	}
}

// inspect applies both detection tables to one directory. Either, both, or
// neither may fire; a directory with no signal is omitted.
func (s *Scanner) inspect(dir, rel string) (Entry, bool) {
	lang := DetectLanguage(dir)
	st := DetectServiceType(filepath.Base(dir))

	switch {
	case lang != types.LanguageUnknown && st != types.ServiceTypeUnknown:
		return Entry{RelPath: rel, Language: lang, ServiceType: st, Confidence: 1.0}, true
	case lang != types.LanguageUnknown:
		return Entry{RelPath: rel, Language: lang, ServiceType: types.ServiceTypeUnknown, Confidence: 0.8}, true
	case st != types.ServiceTypeUnknown:
		// Name-only match: the caller must prompt for a language or fall back
		// to a language-agnostic image.
		return Entry{RelPath: rel, Language: types.LanguageUnknown, ServiceType: st, Confidence: 0.5}, true
	default:
		return Entry{}, false
	}
}

func hasRootEntry(entries []Entry) bool {
	for _, e := range entries {
		if e.RelPath == "." {
			return true
		}
	}
	return false
}

// detectGitMetadata records branch and remote for the workspace description
func (s *Scanner) detectGitMetadata(project *Project) {
	repo, err := git.PlainOpen(project.RootPath)
	if err != nil {
		return
	}
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		project.GitBranch = head.Name().Short()
	}
	if remote, err := repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			project.GitRemote = urls[0]
		}
	}
}

// detectDevcontainer records the descriptor path when the project has one
func (s *Scanner) detectDevcontainer(project *Project) {
	candidates := []string{
		filepath.Join(project.RootPath, ".devcontainer", "devcontainer.json"),
		filepath.Join(project.RootPath, ".devcontainer.json"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			project.DevcontainerPath = c
			return
		}
	}
}
