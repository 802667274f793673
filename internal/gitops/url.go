// File: internal/gitops/url.go
package gitops

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// ParseRepoURL extracts owner and repository name from an
// https://github.com/<owner>/<repo>[.git] URL. SSH remotes and other hosts
// are out of scope and rejected.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	u, parseErr := url.Parse(strings.TrimSpace(raw))
	if parseErr != nil {
		return "", "", fmt.Errorf("%w: %s", schemas.ErrInvalidURL, raw)
	}
	if u.Scheme != "https" || u.Host != "github.com" {
		return "", "", fmt.Errorf("%w: only https://github.com URLs are supported, got %q", schemas.ErrInvalidURL, raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: expected https://github.com/<owner>/<repo>, got %q", schemas.ErrInvalidURL, raw)
	}

	owner = parts[0]
	repo = strings.TrimSuffix(parts[1], ".git")
	if repo == "" {
		return "", "", fmt.Errorf("%w: empty repository name in %q", schemas.ErrInvalidURL, raw)
	}
	return owner, repo, nil
}
