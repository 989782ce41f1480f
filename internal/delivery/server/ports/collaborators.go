package ports

import (
	"context"
	"errors"
)

var (
	// ErrRepoNotFound is returned by a Publisher when the hosting target is absent.
	ErrRepoNotFound = errors.New("repository not found")
	// ErrFileNotFound is returned by a Publisher when a file cannot be read.
	ErrFileNotFound = errors.New("file not found")
)

// GenerationRequest is the input for a fresh build.
type GenerationRequest struct {
	TaskID      string
	Brief       string
	Checks      []string
	Attachments []string
}

// RevisionRequest is the input for a round-2 rewrite.
type RevisionRequest struct {
	TaskID         string
	ExistingSource string
	Feedback       string
	Checks         []string
}

// Generator turns briefs into single-file web applications.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Revise(ctx context.Context, req RevisionRequest) (string, error)
}

// File is a path/content pair committed to a hosting target.
type File struct {
	Path    string
	Content []byte
}

// PublishRequest creates and populates a new hosting target.
type PublishRequest struct {
	RepoName string
	Source   string
	Readme   string
	Files    []File
}

// Publisher owns the hosting target. Implementations report missing
// repositories and files with ErrRepoNotFound and ErrFileNotFound.
type Publisher interface {
	CreateAndPublish(ctx context.Context, req PublishRequest) (Artifact, error)
	RepoExists(ctx context.Context, repo string) error
	GetFile(ctx context.Context, repo, path string) (string, error)
	ReplaceFile(ctx context.Context, repo, path, content, message string) (commitSHA string, err error)
	LatestCommitSHA(ctx context.Context, repo string) (string, error)

	// RepoURL and PagesURL derive public URLs without a network call.
	RepoURL(repo string) string
	PagesURL(repo string) string
}

// Attachment is a client-supplied file reference, usually a data URI.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AttachmentProcessor resolves attachments into files to commit.
type AttachmentProcessor interface {
	Process(ctx context.Context, attachments []Attachment) ([]File, error)
}
