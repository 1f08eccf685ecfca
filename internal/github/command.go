package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Enrich recognizes the chat commands "list my repos" and
// "show file <path> from <repo> repo". When one matches and GitHub answers,
// it returns the fetched data followed by the original question. Otherwise
// the message is returned unchanged.
func (c *Client) Enrich(ctx context.Context, message string) string {
	if !c.IsConfigured() {
		return message
	}

	data, ok := c.runCommand(ctx, message)
	if !ok {
		return message
	}
	return fmt.Sprintf("%s\n\nUser's question: %s", data, message)
}

func (c *Client) runCommand(ctx context.Context, message string) (string, bool) {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "list my repos"):
		repos, err := c.recentRepos(ctx, 10)
		if err != nil {
			log.Warn().Err(err).Msg("GitHub repo listing failed")
			return "", false
		}
		lines := make([]string, 0, len(repos))
		for _, r := range repos {
			desc := r.Description
			if desc == "" {
				desc = "No description"
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", r.Name, desc))
		}
		return "Here are your recent repositories:\n" + strings.Join(lines, "\n"), true

	case strings.Contains(lower, "show file"):
		path, repo, ok := parseShowFile(lower)
		if !ok {
			return "", false
		}
		file, err := c.GetFile(ctx, "", repo, path)
		if err != nil {
			log.Warn().Err(err).Str("repo", repo).Str("path", path).Msg("GitHub file fetch failed")
			return "", false
		}
		return fmt.Sprintf("File: %s from %s\n\n```%s```", path, repo, file.Content), true
	}

	return "", false
}

// parseShowFile extracts path and repo from "... file <path> from <repo> repo ..."
func parseShowFile(lower string) (path, repo string, ok bool) {
	words := strings.Fields(lower)
	fileIdx, fromIdx, repoIdx := -1, -1, -1
	for i, w := range words {
		switch w {
		case "file":
			if fileIdx < 0 {
				fileIdx = i
			}
		case "from":
			if fromIdx < 0 {
				fromIdx = i
			}
		case "repo":
			repoIdx = i
		}
	}
	if fileIdx < 0 || fromIdx < 0 || repoIdx < 0 {
		return "", "", false
	}
	if fileIdx+1 >= len(words) || fromIdx+1 >= len(words) {
		return "", "", false
	}
	return words[fileIdx+1], words[fromIdx+1], true
}
