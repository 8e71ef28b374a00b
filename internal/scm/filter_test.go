package scm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExcluded(t *testing.T) {
	rules := DefaultFilterRules()

	tests := []struct {
		name string
		pr   PullRequest
		want bool
	}{
		{"bot author", PullRequest{Title: "hello: 1.0 -> 2.0", Author: "r-ryantm"}, true},
		{"bot author mixed case", PullRequest{Title: "hello: 1.0 -> 2.0", Author: "R-RyanTM"}, true},
		{"nixos prefix", PullRequest{Title: "nixos/nginx: add option", Author: "alice"}, true},
		{"treewide prefix upper", PullRequest{Title: "Treewide: drop foo", Author: "alice"}, true},
		{"prefix only at start", PullRequest{Title: "hello: treewide 1 -> 2", Author: "alice"}, false},
		{"regular package PR", PullRequest{Title: "hello: 1.0 -> 2.0", Author: "alice"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.IsExcluded(tt.pr))
		})
	}
}

func TestIsExcludedCustomPrefixCaseInsensitive(t *testing.T) {
	rules := FilterRules{ExcludedPrefixes: []string{"LIB."}}
	assert.True(t, rules.IsExcluded(PullRequest{Title: "lib.strings: 1 -> 2"}))
	assert.False(t, rules.IsExcluded(PullRequest{Title: "libfoo: 1 -> 2"}))
}

func TestIsExcludedEmptyRules(t *testing.T) {
	assert.False(t, FilterRules{}.IsExcluded(PullRequest{Title: "treewide: x", Author: "r-ryantm"}))
}

func TestFilter(t *testing.T) {
	prs := []PullRequest{
		{Number: 5, Title: "hello: 1.0 -> 2.0", Author: "alice"},
		{Number: 4, Title: "nixos/nginx: 1.0 -> 2.0", Author: "alice"},
		{Number: 3, Title: "foo: 1.0 -> 2.0", Author: "r-ryantm"},
		{Number: 2, Title: "Fix typo in readme", Author: "bob"},
		{Number: 1, Title: "fastfetch-rs: init at 0.1.6", Author: "bob"},
	}

	got := DefaultFilterRules().Filter(prs)

	var numbers []int
	for _, pr := range got {
		numbers = append(numbers, pr.Number)
	}
	assert.Equal(t, []int{5, 1}, numbers)
}
