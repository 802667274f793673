// File: internal/gitops/url_test.go
package gitops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

func TestParseRepoURL(t *testing.T) {
	t.Run("plain https url", func(t *testing.T) {
		owner, repo, err := ParseRepoURL("https://github.com/octocat/hello-world")
		require.NoError(t, err)
		assert.Equal(t, "octocat", owner)
		assert.Equal(t, "hello-world", repo)
	})

	t.Run("strips .git suffix", func(t *testing.T) {
		owner, repo, err := ParseRepoURL("https://github.com/octocat/hello-world.git")
		require.NoError(t, err)
		assert.Equal(t, "octocat", owner)
		assert.Equal(t, "hello-world", repo)
	})

	t.Run("tolerates surrounding whitespace", func(t *testing.T) {
		owner, _, err := ParseRepoURL("  https://github.com/octocat/hello-world\n")
		require.NoError(t, err)
		assert.Equal(t, "octocat", owner)
	})

	t.Run("rejects non-github hosts", func(t *testing.T) {
		_, _, err := ParseRepoURL("https://gitlab.com/octocat/hello-world")
		assert.ErrorIs(t, err, schemas.ErrInvalidURL)
	})

	t.Run("rejects ssh remotes", func(t *testing.T) {
		_, _, err := ParseRepoURL("git@github.com:octocat/hello-world.git")
		assert.ErrorIs(t, err, schemas.ErrInvalidURL)
	})

	t.Run("rejects missing repo segment", func(t *testing.T) {
		_, _, err := ParseRepoURL("https://github.com/octocat")
		assert.ErrorIs(t, err, schemas.ErrInvalidURL)
	})

	t.Run("rejects extra path segments", func(t *testing.T) {
		_, _, err := ParseRepoURL("https://github.com/octocat/hello-world/tree/main")
		assert.ErrorIs(t, err, schemas.ErrInvalidURL)
	})

	t.Run("rejects bare .git repo name", func(t *testing.T) {
		_, _, err := ParseRepoURL("https://github.com/octocat/.git")
		assert.ErrorIs(t, err, schemas.ErrInvalidURL)
	})
}
