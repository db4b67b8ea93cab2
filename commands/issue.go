package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Issue files a GitHub issue. One argument is the title; two arguments
// are title and body. Requires "user", "token" and "repo" options,
// with optional "labels".
func Issue(ctx context.Context, req *Request) error {
	user := req.String("user")
	token := req.String("token")
	repo := req.String("repo")
	if user == "" || token == "" {
		return nil
	}

	payload := map[string]interface{}{}
	if len(req.Args) == 2 {
		payload["title"] = req.Args[0]
		payload["body"] = req.Args[1]
	} else {
		title := ""
		for i, arg := range req.Args {
			if i > 0 {
				title += " "
			}
			title += arg
		}
		payload["title"] = title
	}
	if labels := labelList(req.Options["labels"]); len(labels) > 0 {
		payload["labels"] = labels
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "could not encode issue")
	}

	url := fmt.Sprintf("https://api.github.com/repos/%s/issues", repo)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "could not build issue request")
	}
	httpReq.SetBasicAuth(user, token)
	httpReq.Header.Set("Accept", "application/vnd.github.v3+json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "issue request failed")
	}
	defer resp.Body.Close()

	var issue struct {
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return errors.Wrap(err, "could not decode issue response")
	}
	if issue.HTMLURL == "" {
		return errors.Errorf("issue creation refused (HTTP %d)", resp.StatusCode)
	}

	return req.Reply(issue.HTMLURL)
}

// labelList coerces the configured labels value, which viper hands us
// as []interface{}, into strings.
func labelList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var labels []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			labels = append(labels, s)
		}
	}
	return labels
}
