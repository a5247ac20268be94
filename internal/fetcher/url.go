package fetcher

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/tutils-dev/tutils/internal/errs"
)

var downloadSchemes = map[string]bool{"http": true, "https": true, "ftp": true}

var gitSchemes = map[string]bool{"http": true, "https": true, "ssh": true, "git": true, "file": true}

// ValidateURL checks that link is a well-formed http, https or ftp URL with a
// host. It performs no network access.
func ValidateURL(link string) error {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return errs.New(errs.ErrInvalidLink, link, err)
	}
	if !downloadSchemes[strings.ToLower(u.Scheme)] {
		return errs.New(errs.ErrInvalidLink, link, errors.New("scheme must be http, https or ftp"))
	}
	if u.Host == "" {
		return errs.New(errs.ErrInvalidLink, link, errors.New("missing host"))
	}
	return nil
}

// ValidateGitURL accepts anything git can clone from: http(s), ssh, git and
// file URLs, plus scp-like "user@host:path" addresses.
func ValidateGitURL(link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return errs.New(errs.ErrInvalidLink, link, errors.New("empty URL"))
	}
	if isSCPLike(link) {
		return nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return errs.New(errs.ErrInvalidLink, link, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !gitSchemes[scheme] {
		return errs.New(errs.ErrInvalidLink, link, errors.New("unsupported scheme for git"))
	}
	if scheme != "file" && u.Host == "" {
		return errs.New(errs.ErrInvalidLink, link, errors.New("missing host"))
	}
	if scheme == "file" && u.Path == "" {
		return errs.New(errs.ErrInvalidLink, link, errors.New("missing path"))
	}
	return nil
}

// isSCPLike reports whether s looks like git@github.com:owner/repo.git.
func isSCPLike(s string) bool {
	if strings.Contains(s, "://") {
		return false
	}
	at := strings.Index(s, "@")
	colon := strings.Index(s, ":")
	return at > 0 && colon > at+1 && colon < len(s)-1
}

// Dir returns the directory part of link: everything up to the last path
// separator. Query and fragment are dropped.
//
//	Dir("https://host/repo/index.yaml") == "https://host/repo"
func Dir(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		if i := strings.LastIndex(link, "/"); i >= 0 {
			return link[:i]
		}
		return link
	}
	u.RawQuery = ""
	u.Fragment = ""
	dir := path.Dir(u.Path)
	if dir == "." || dir == "/" {
		dir = ""
	}
	u.Path = dir
	u.RawPath = ""
	return u.String()
}

// Join appends path elements to base with exactly one separator between them.
func Join(base string, elems ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.Join(elems, "/")
	}
	return u.JoinPath(elems...).String()
}
