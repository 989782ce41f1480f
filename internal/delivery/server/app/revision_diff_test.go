package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeRevision(t *testing.T) {
	assert.Equal(t, "index.html unchanged", summarizeRevision("index.html", "<p>a</p>", "<p>a</p>"))
	assert.Equal(t, "index.html +3/-0 chars", summarizeRevision("index.html", "<p>a</p>", "<p>abcd</p>"))
	assert.Equal(t, "README.md +0/-5 chars", summarizeRevision("README.md", "hello world", "hello "))
}
