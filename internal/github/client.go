package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Author signs generated commits
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when no author is configured
var DefaultAuthor = Author{Name: "Project Pilot", Email: "bot@project-pilot.dev"}

// Client handles GitHub operations
type Client struct {
	client *github.Client
	token  string
	owner  string
}

// NewClient creates a new GitHub client
func NewClient(token, owner string) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		client: github.NewClient(tc),
		token:  token,
		owner:  owner,
	}
}

// CreateRepository creates a new GitHub repository under owner, or the
// authenticated user when owner is empty
func (c *Client) CreateRepository(ctx context.Context, name, description string, private bool) (*github.Repository, error) {
	repo := &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(private),
		AutoInit:    github.Bool(false),
	}

	createdRepo, resp, err := c.client.Repositories.Create(ctx, c.owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			if c.owner != "" {
				return nil, fmt.Errorf("failed to create repository: organization or user '%s' not found, or token lacks 'repo' permission", c.owner)
			}
			return nil, fmt.Errorf("failed to create repository: authentication failed or token lacks 'repo' permission: %w", err)
		}
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	return createdRepo, nil
}

// Push adds repoURL as origin of the repository in dir and pushes to it
func (c *Client) Push(ctx context.Context, dir, repoURL string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})
	if err != nil && !errors.Is(err, git.ErrRemoteExists) {
		return fmt.Errorf("failed to add remote: %w", err)
	}

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth: &http.BasicAuth{
			Username: "git",
			Password: c.token,
		},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push: %w", err)
	}

	return nil
}

// Publish creates the remote repository and pushes the committed tree in dir.
// It returns the repository's web URL.
func (c *Client) Publish(ctx context.Context, dir, name, description string, private bool) (string, error) {
	repo, err := c.CreateRepository(ctx, name, description, private)
	if err != nil {
		return "", err
	}
	if err := c.Push(ctx, dir, repo.GetCloneURL()); err != nil {
		return repo.GetHTMLURL(), err
	}
	return repo.GetHTMLURL(), nil
}

// InitRepository initializes (or opens) a git repository in dir and commits
// files, given as slash-separated paths relative to dir. It returns the
// commit hash.
func InitRepository(dir string, files []string, message string, author Author) (string, error) {
	repo, err := git.PlainInit(dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = git.PlainOpen(dir)
	}
	if err != nil {
		return "", fmt.Errorf("failed to init repository: %w", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	for _, f := range files {
		if _, err := w.Add(f); err != nil {
			return "", fmt.Errorf("failed to add %s: %w", f, err)
		}
	}

	if author.Name == "" {
		author = DefaultAuthor
	}
	hash, err := w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	return hash.String(), nil
}
