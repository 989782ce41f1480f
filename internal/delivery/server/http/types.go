package http

import (
	"github.com/Amit95688/TDS/internal/delivery/server/app"
	"github.com/Amit95688/TDS/internal/delivery/server/ports"
)

// buildRequestBody mirrors POST /api/build. Round is a pointer so an absent
// field can default to 1 while an explicit 0 is rejected.
type buildRequestBody struct {
	Email         string             `json:"email"`
	Secret        string             `json:"secret"`
	Task          string             `json:"task"`
	Round         *int               `json:"round"`
	Nonce         string             `json:"nonce"`
	Brief         string             `json:"brief"`
	Checks        []string           `json:"checks"`
	EvaluationURL string             `json:"evaluation_url"`
	Attachments   []ports.Attachment `json:"attachments"`
}

func (b buildRequestBody) toRequest() app.BuildRequest {
	return app.BuildRequest{
		Email:         b.Email,
		Secret:        b.Secret,
		Task:          b.Task,
		Round:         b.Round,
		Nonce:         b.Nonce,
		Brief:         b.Brief,
		Checks:        b.Checks,
		EvaluationURL: b.EvaluationURL,
		Attachments:   b.Attachments,
	}
}

type reviseRequestBody struct {
	Email         string   `json:"email"`
	Secret        string   `json:"secret"`
	Task          string   `json:"task"`
	Round         *int     `json:"round"`
	Nonce         string   `json:"nonce"`
	Brief         string   `json:"brief"`
	Checks        []string `json:"checks"`
	EvaluationURL string   `json:"evaluation_url"`
}

func (b reviseRequestBody) toRequest() app.ReviseRequest {
	return app.ReviseRequest{
		Email:         b.Email,
		Secret:        b.Secret,
		Task:          b.Task,
		Round:         b.Round,
		Nonce:         b.Nonce,
		Brief:         b.Brief,
		Checks:        b.Checks,
		EvaluationURL: b.EvaluationURL,
	}
}

// webhookBody is the evaluator callback.
type webhookBody struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

func (b webhookBody) toResult() ports.EvaluationResult {
	return ports.EvaluationResult{
		TaskID:    b.Task,
		Round:     b.Round,
		Nonce:     b.Nonce,
		Email:     b.Email,
		RepoURL:   b.RepoURL,
		CommitSHA: b.CommitSHA,
		PagesURL:  b.PagesURL,
	}
}

type resultsResponse struct {
	TaskID  string                   `json:"task_id"`
	Round   int                      `json:"round"`
	Results []ports.EvaluationResult `json:"results"`
}

type tasksResponse struct {
	Email string        `json:"email"`
	Tasks []*ports.Task `json:"tasks"`
	Count int           `json:"count"`
}

type historyResponse struct {
	TaskID      string                 `json:"task_id"`
	Round       int                    `json:"round"`
	Transitions []ports.TaskTransition `json:"transitions"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}
