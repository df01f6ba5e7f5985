// Package gitmeta collects read-only repository metadata for the bundle.
package gitmeta

import (
	"errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// DefaultCommitLimit caps how many recent commits are embedded in metadata.
const DefaultCommitLimit = 10

// Commit describes one recent commit.
type Commit struct {
	Hash    string `json:"hash" xml:"hash,attr"`
	Author  string `json:"author" xml:"author,attr"`
	Email   string `json:"author_email" xml:"author_email,attr"`
	Date    string `json:"date" xml:"date,attr"`
	Subject string `json:"subject" xml:"subject"`
}

// Remote describes one configured remote.
type Remote struct {
	Name string `json:"name" xml:"name,attr"`
	URL  string `json:"url" xml:"url,attr"`
}

// Info is the optional git block embedded in bundle metadata.
type Info struct {
	Branch  string   `json:"branch,omitempty" xml:"branch,omitempty"`
	Head    string   `json:"head,omitempty" xml:"head,omitempty"`
	Commits []Commit `json:"recent_commits,omitempty" xml:"commit,omitempty"`
	Remotes []Remote `json:"remotes,omitempty" xml:"remote,omitempty"`
}

// Collect gathers branch, HEAD and recent non-merge commit information for
// the repository at root. Callers treat any error as "no git metadata": the
// block is omitted from the output and the run continues.
func Collect(root string, commitLimit int) (*Info, error) {
	if commitLimit <= 0 {
		commitLimit = DefaultCommitLimit
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	info := &Info{
		Branch: head.Name().Short(),
		Head:   head.Hash().String(),
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read commit log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		if c.NumParents() > 1 {
			return nil // skip merge commits
		}
		info.Commits = append(info.Commits, Commit{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			Date:    c.Author.When.Format(time.RFC3339),
			Subject: firstLine(c.Message),
		})
		if len(info.Commits) >= commitLimit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}

	remotes, err := repo.Remotes()
	if err == nil {
		for _, r := range remotes {
			cfg := r.Config()
			url := ""
			if len(cfg.URLs) > 0 {
				url = cfg.URLs[0]
			}
			info.Remotes = append(info.Remotes, Remote{Name: cfg.Name, URL: url})
		}
	}

	return info, nil
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return strings.TrimSpace(message)
}
