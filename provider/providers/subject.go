package providers

import (
	"strconv"
	"strings"
)

// pullNumberFromSubjectURL extracts the PR number from a notification
// subject API URL such as ".../repos/o/r/pulls/42". Issue subjects and
// malformed URLs yield zero.
func pullNumberFromSubjectURL(subjectURL string) int {
	idx := strings.LastIndex(subjectURL, "/pulls/")
	if idx == -1 {
		return 0
	}
	tail := subjectURL[idx+len("/pulls/"):]
	if slash := strings.IndexByte(tail, '/'); slash != -1 {
		tail = tail[:slash]
	}
	n, err := strconv.Atoi(tail)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
