// Package ignore decides which project paths are excluded from packaging.
//
// Two layers are consulted: a built-in pattern matcher covering paths that
// must never be packaged (the .git directory, previously generated bundles),
// and git's own ignore evaluation via a persistent `git check-ignore`
// subprocess. When git is unavailable or the root is not inside a work tree,
// the git layer degrades to "nothing is ignored" and the run continues.
package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	gitignore "github.com/denormal/go-gitignore"
	"go.uber.org/zap"
)

// defaultPatterns are always excluded regardless of the project's own rules.
var defaultPatterns = []string{
	".git/",
	".gitignore",
}

// Filter reports whether a path relative to the project root is excluded.
type Filter interface {
	// Ignored returns true when the relative (slash-separated) path should be
	// skipped. Directories are checked with isDir=true so that whole subtrees
	// can be pruned without visiting their children.
	Ignored(relPath string, isDir bool) bool

	// Close releases any resources held by the filter.
	Close() error
}

// filter layers the built-in matcher over the optional git checker.
type filter struct {
	defaults gitignore.GitIgnore
	git      *GitChecker
	logger   *zap.Logger
}

// New builds the composite filter for root. extraPatterns are appended to the
// built-in defaults; they use gitignore syntax and are matched relative to
// root. A missing git binary or a root outside any work tree is not an error.
func New(root string, extraPatterns []string, logger *zap.Logger) Filter {
	patterns := make([]string, 0, len(defaultPatterns)+len(extraPatterns))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, extraPatterns...)

	matcher := gitignore.New(
		strings.NewReader(strings.Join(patterns, "\n")),
		root,
		func(err gitignore.Error) bool { return false },
	)

	checker, err := NewGitChecker(root, logger)
	if err != nil {
		logger.Info("git ignore rules unavailable, only built-in excludes apply",
			zap.String("root", root),
			zap.Error(err))
		checker = nil
	}

	return &filter{defaults: matcher, git: checker, logger: logger}
}

func (f *filter) Ignored(relPath string, isDir bool) bool {
	if f.defaults != nil {
		if match := f.defaults.Relative(relPath, isDir); match != nil && match.Ignore() {
			f.logger.Debug("path excluded by built-in pattern", zap.String("path", relPath))
			return true
		}
	}
	if f.git != nil && f.git.Ignored(relPath) {
		f.logger.Debug("path excluded by git ignore rules", zap.String("path", relPath))
		return true
	}
	return false
}

func (f *filter) Close() error {
	if f.git != nil {
		return f.git.Close()
	}
	return nil
}

// GitChecker queries git's ignore evaluation through a single long-lived
// `git check-ignore --stdin -z -v -n` subprocess. Each query writes one
// NUL-terminated path and reads back the four NUL-terminated fields git
// emits per path (source, line number, pattern, pathname); an empty pattern
// means the path is not ignored.
type GitChecker struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	broken bool
	logger *zap.Logger
}

// NewGitChecker starts the check-ignore subprocess for root. It fails when
// the git binary is missing or root is not inside a git work tree.
func NewGitChecker(root string, logger *zap.Logger) (*GitChecker, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git binary not found: %w", err)
	}

	probe := exec.Command("git", "-C", root, "rev-parse", "--is-inside-work-tree")
	out, err := probe.Output()
	if err != nil || strings.TrimSpace(string(out)) != "true" {
		return nil, fmt.Errorf("%s is not inside a git work tree", root)
	}

	cmd := exec.Command("git", "-C", root, "check-ignore", "--stdin", "-z", "-v", "-n")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open check-ignore stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open check-ignore stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start git check-ignore: %w", err)
	}

	logger.Debug("started git check-ignore subprocess", zap.Int("pid", cmd.Process.Pid))

	return &GitChecker{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		logger: logger,
	}, nil
}

// Ignored reports whether git considers the relative path ignored. Errors on
// the subprocess pipe mark the checker broken; subsequent queries return
// false so the walk can proceed with built-in excludes only.
func (g *GitChecker) Ignored(relPath string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.broken {
		return false
	}

	if _, err := io.WriteString(g.stdin, relPath+"\x00"); err != nil {
		g.fail("write", err)
		return false
	}

	var fields [4]string
	for i := range fields {
		field, err := g.stdout.ReadString(0)
		if err != nil {
			g.fail("read", err)
			return false
		}
		fields[i] = strings.TrimSuffix(field, "\x00")
	}

	pattern := fields[2]
	if pattern == "" {
		return false
	}
	// A negated pattern match means the path is explicitly re-included.
	return !strings.HasPrefix(pattern, "!")
}

func (g *GitChecker) fail(op string, err error) {
	g.broken = true
	g.logger.Warn("git check-ignore pipe failed, disabling git ignore rules",
		zap.String("op", op),
		zap.Error(err))
}

// Close shuts down the subprocess. check-ignore exits with status 1 when no
// queried path was ignored, which is not an error.
func (g *GitChecker) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.stdin.Close(); err != nil {
		g.logger.Debug("failed to close check-ignore stdin", zap.Error(err))
	}
	err := g.cmd.Wait()
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return nil
	}
	return err
}
