package similarity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writeComponents(t testing.TB, root string, files ...string) {
	t.Helper()
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("export {}\n"), 0o644))
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"UserCard":      "usercard",
		"usercard-new":  "usercardnew",
		"User_Card.v2":  "usercardv2",
		"---":           "",
		"Ünïcode Card":  "ncodecard",
		"":              "",
		"NAV bar 2000!": "navbar2000",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestQueryContainedCandidate(t *testing.T) {
	root := t.TempDir()
	writeComponents(t, root, "cards/UserCard.tsx", "Button.jsx")

	matches, err := New(root).Query("usercard-new")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "UserCard", matches[0].Name)
	assert.Equal(t, "cards/UserCard.tsx", matches[0].Path)
	assert.Equal(t, SentinelConfidence, matches[0].Confidence)
}

func TestQueryContainingCandidate(t *testing.T) {
	root := t.TempDir()
	writeComponents(t, root, "UserCardList.tsx", "Card.tsx", "Modal.tsx")

	matches, err := New(root).Query("card")
	require.NoError(t, err)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Card", "UserCardList"}, names)
}

func TestQueryEmptyNormalizedNameMatchesNothing(t *testing.T) {
	root := t.TempDir()
	writeComponents(t, root, "UserCard.tsx", "Button.tsx")

	for _, q := range []string{"", "---", "__"} {
		matches, err := New(root).Query(q)
		require.NoError(t, err)
		assert.Empty(t, matches, "query %q", q)
	}
}

func TestQueryMissingRootHasNoMatches(t *testing.T) {
	matches, err := New(filepath.Join(t.TempDir(), "absent")).Query("UserCard")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQuerySkipsExcludedDirsAndForeignExtensions(t *testing.T) {
	root := t.TempDir()
	writeComponents(t, root,
		"node_modules/UserCard.tsx",
		"dist/UserCard.js",
		"UserCard.css",
		"UserCard.md",
		"ok/UserCard.ts",
	)

	matches, err := New(root).Query("UserCard")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ok/UserCard.ts", matches[0].Path)
}

func TestQueryPathsRelativeToBase(t *testing.T) {
	project := t.TempDir()
	root := filepath.Join(project, "src", "components")
	writeComponents(t, root, "UserCard.tsx")

	idx := New(root)
	idx.Base = project
	matches, err := idx.Query("UserCard")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "src/components/UserCard.tsx", matches[0].Path)
}

func TestQueryIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeComponents(t, root, "a/Header.tsx", "b/HeaderNav.jsx", "Footer.tsx")
	idx := New(root)

	first, err := idx.Query("header")
	require.NoError(t, err)
	second, err := idx.Query("header")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQueryWalksFreshEachTime(t *testing.T) {
	root := t.TempDir()
	idx := New(root)

	matches, err := idx.Query("Sidebar")
	require.NoError(t, err)
	assert.Empty(t, matches)

	writeComponents(t, root, "Sidebar.tsx")
	matches, err = idx.Query("Sidebar")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPropertyQueryMatchesExactlyContainmentSet(t *testing.T) {
	nameGen := rapid.StringMatching(`[A-Za-z][A-Za-z0-9_-]{0,7}`)
	rapid.Check(t, func(rt *rapid.T) {
		root := t.TempDir()
		names := rapid.SliceOfNDistinct(nameGen, 1, 8, strings.ToLower).Draw(rt, "names")
		for _, name := range names {
			writeComponents(t, root, name+".tsx")
		}
		query := rapid.OneOf(nameGen, rapid.SampledFrom(names)).Draw(rt, "query")

		idx := New(root)
		got, err := idx.Query(query)
		if err != nil {
			rt.Fatalf("query: %v", err)
		}
		again, err := idx.Query(query)
		if err != nil {
			rt.Fatalf("query: %v", err)
		}
		if len(got) != len(again) {
			rt.Fatalf("query not idempotent: %v vs %v", got, again)
		}

		want := map[string]bool{}
		q := Normalize(query)
		for _, name := range names {
			c := Normalize(name)
			if q != "" && c != "" && (strings.Contains(c, q) || strings.Contains(q, c)) {
				want[name] = true
			}
		}
		if len(got) != len(want) {
			rt.Fatalf("query %q: got %v, want %v", query, got, want)
		}
		for _, m := range got {
			if !want[m.Name] {
				rt.Fatalf("query %q matched %s unexpectedly", query, m.Name)
			}
			if m.Confidence != SentinelConfidence {
				rt.Fatalf("confidence %v is not the sentinel", m.Confidence)
			}
		}
	})
}
