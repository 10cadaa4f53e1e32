package domain

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// IssueNumber accepts both JSON numbers and numeric strings; browser
// clients send the path capture as-is.
type IssueNumber int64

func (n *IssueNumber) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("issue number: %w", err)
	}
	*n = IssueNumber(v)
	return nil
}

// RoomKey identifies the issue or pull request page being viewed.
type RoomKey struct {
	Repo  string      `json:"repoName" validate:"required,max=256"`
	Issue IssueNumber `json:"issueId" validate:"gt=0"`
}

func (k RoomKey) String() string {
	return k.Repo + "#" + strconv.FormatInt(int64(k.Issue), 10)
}

type PageType string

const (
	PageIssue PageType = "issues"
	PagePull  PageType = "pull"
)

var pagePath = regexp.MustCompile(`/(\S+)/(issues|pull)/(\d+)`)

// RoomKeyFromPath extracts the room from a GitHub page path such as
// /owner/repo/pull/12/files.
func RoomKeyFromPath(path string) (RoomKey, PageType, bool) {
	m := pagePath.FindStringSubmatch(path)
	if m == nil {
		return RoomKey{}, "", false
	}
	n, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil || n <= 0 {
		return RoomKey{}, "", false
	}
	return RoomKey{Repo: m[1], Issue: IssueNumber(n)}, PageType(m[2]), true
}
