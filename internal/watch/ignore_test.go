// Copyright (c) 2026 Devloop Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package watch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreSet_OutputDirAndChildren(t *testing.T) {
	out := filepath.Join("/proj", "server", ".build")
	set := NewIgnoreSet([]string{out}, nil)

	assert.True(t, set.Match(out))
	assert.True(t, set.Match(filepath.Join(out, "routes.json")))
	assert.True(t, set.Match(filepath.Join(out, "actions", "send.js")))
	assert.False(t, set.Match(filepath.Join("/proj", "app", "routes.ts")))
}

func TestIgnoreSet_DependencyCaches(t *testing.T) {
	set := NewIgnoreSet(nil, nil)

	assert.True(t, set.Match("/proj/node_modules/react/index.js"))
	assert.True(t, set.Match("/proj/.git/HEAD"))
	assert.False(t, set.Match("/proj/app/actions/mail.ts"))
}

func TestIgnoreSet_Globs(t *testing.T) {
	set := NewIgnoreSet(nil, []string{"*.swp", "*~", ".#*"})

	assert.True(t, set.Match("/proj/app/.routes.ts.swp"))
	assert.True(t, set.Match("/proj/app/routes.ts~"))
	assert.True(t, set.Match("/proj/app/.#routes.ts"))
	assert.False(t, set.Match("/proj/app/routes.ts"))
}

func TestIgnoreSet_SimilarPrefixNotIgnored(t *testing.T) {
	set := NewIgnoreSet([]string{"/proj/server/.build"}, nil)

	// A sibling whose name shares the prefix must not be swallowed.
	assert.False(t, set.Match("/proj/server/.buildinfo"))
}
