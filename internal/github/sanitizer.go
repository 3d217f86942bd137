package github

import (
	"regexp"
	"strings"
)

var (
	reInvisible    = regexp.MustCompile("[\u200B\u200C\u200D\uFEFF]")
	reControl      = regexp.MustCompile("[\u0000-\u0008\u000B\u000C\u000E-\u001F\u007F-\u009F]")
	reSoftHyphen   = regexp.MustCompile("\u00AD")
	reBidi         = regexp.MustCompile("[\u202A-\u202E\u2066-\u2069]")
	reHTMLComments = regexp.MustCompile(`<!--[\s\S]*?-->`)

	reGitHubPATClassic   = regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`)
	reGitHubOAuth        = regexp.MustCompile(`\bgho_[A-Za-z0-9]{36}\b`)
	reGitHubInstallation = regexp.MustCompile(`\bghs_[A-Za-z0-9]{36}\b`)
	reGitHubRefresh      = regexp.MustCompile(`\bghr_[A-Za-z0-9]{36}\b`)
	reGitHubFineGrained  = regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{11,221}\b`)
)

// StripHtmlComments removes HTML comments.
func StripHtmlComments(s string) string {
	return reHTMLComments.ReplaceAllString(s, "")
}

// StripInvisibleCharacters removes zero-width and control chars.
func StripInvisibleCharacters(s string) string {
	s = reInvisible.ReplaceAllString(s, "")
	s = reControl.ReplaceAllString(s, "")
	s = reSoftHyphen.ReplaceAllString(s, "")
	s = reBidi.ReplaceAllString(s, "")
	return s
}

// RedactGitHubTokens censors GitHub token-like strings.
func RedactGitHubTokens(s string) string {
	s = reGitHubPATClassic.ReplaceAllString(s, "[REDACTED_GITHUB_TOKEN]")
	s = reGitHubOAuth.ReplaceAllString(s, "[REDACTED_GITHUB_TOKEN]")
	s = reGitHubInstallation.ReplaceAllString(s, "[REDACTED_GITHUB_TOKEN]")
	s = reGitHubRefresh.ReplaceAllString(s, "[REDACTED_GITHUB_TOKEN]")
	s = reGitHubFineGrained.ReplaceAllString(s, "[REDACTED_GITHUB_TOKEN]")
	return s
}

// SanitizeContent cleans tracker text before it reaches a prompt or a log line.
func SanitizeContent(s string) string {
	if s == "" {
		return s
	}
	s = StripHtmlComments(s)
	s = StripInvisibleCharacters(s)
	s = RedactGitHubTokens(s)
	return strings.TrimSpace(s)
}
