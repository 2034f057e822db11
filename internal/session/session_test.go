package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/conduit-lang/graphql-lsp/internal/definition"
	"github.com/conduit-lang/graphql-lsp/internal/document"
	"github.com/conduit-lang/graphql-lsp/internal/testing/fixtures"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

func starWarsProject(t *testing.T, files map[string]string) (*Session, string) {
	t.Helper()

	all := map[string]string{"schema.graphql": fixtures.StarWarsSDL}
	for name, content := range files {
		all[name] = content
	}
	root := fixtures.WriteProject(t, all)

	s := New(Options{
		LoadProject: func(string) (Project, error) {
			return Project{Schema: []string{"schema.graphql"}}, nil
		},
	})
	_, err := s.Initialize(context.Background(), InitializeParams{RootPath: root})
	require.NoError(t, err)
	return s, root
}

func fileURI(root, name string) string {
	return string(uri.File(filepath.Join(root, name)))
}

func pos(line, character int) *tooling.Position {
	return &tooling.Position{Line: line, Character: character}
}

func fullText(text string) document.Edit {
	return document.Edit{Text: text}
}

func rangedEdit(startLine, startChar, endLine, endChar int, text string) document.Edit {
	return document.Edit{
		Range: &tooling.Range{
			Start: tooling.Position{Line: startLine, Character: startChar},
			End:   tooling.Position{Line: endLine, Character: endChar},
		},
		Text: text,
	}
}

func TestInitializeCapabilities(t *testing.T) {
	s := New(Options{})

	result, err := s.Initialize(context.Background(), InitializeParams{RootPath: t.TempDir()})
	require.NoError(t, err)

	assert.True(t, result.Capabilities.CompletionProvider.ResolveProvider)
	assert.True(t, result.Capabilities.DefinitionProvider)
	assert.Equal(t, SyncFull, result.Capabilities.TextDocumentSync)
	assert.NotEmpty(t, s.ID())
}

func TestInitializeProjectLoadFailure(t *testing.T) {
	s := New(Options{
		LoadProject: func(string) (Project, error) {
			return Project{}, fmt.Errorf("bad config")
		},
	})
	root := t.TempDir()

	_, err := s.Initialize(context.Background(), InitializeParams{RootPath: root})
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())

	result, err := s.DidOpen(context.Background(), TextDocumentItem{URI: "a.graphql", Text: "{ anything }", Version: 1})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)
}

func TestExampleScenario(t *testing.T) {
	s, root := starWarsProject(t, nil)
	ctx := context.Background()
	docURI := fileURI(root, "test.graphql")

	opened, err := s.DidOpen(ctx, TextDocumentItem{URI: docURI, Text: "{ hero(episode: NEWHOPE) { } }", Version: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, opened.Diagnostics)

	changed, err := s.DidChange(ctx, DidChangeParams{
		URI:     docURI,
		Version: 2,
		Changes: []document.Edit{fullText("{ hero(episode: NEWHOPE) { name } }")},
	})
	require.NoError(t, err)
	assert.Empty(t, changed.Diagnostics)
	assert.Equal(t, 2, changed.Version)

	require.NoError(t, s.DidClose(ctx, docURI))

	list, err := s.Completion(ctx, PositionParams{URI: docURI, Position: pos(0, 0)})
	require.NoError(t, err)
	assert.Nil(t, list)

	locations, err := s.Definition(ctx, PositionParams{URI: docURI, Position: pos(0, 0)})
	require.NoError(t, err)
	assert.Nil(t, locations)
}

func TestDidChangeAppliesEditsInOrder(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "query { hero { name } }", Version: 1})
	require.NoError(t, err)

	result, err := s.DidChange(ctx, DidChangeParams{
		URI:     "doc.graphql",
		Version: 2,
		Changes: []document.Edit{
			// Leaves an empty selection set, which does not parse.
			rangedEdit(0, 15, 0, 19, ""),
			fullText("{ hero { name } }"),
			rangedEdit(0, 13, 0, 13, " appearsIn"),
		},
	})
	require.NoError(t, err)

	entry, ok := s.store.Get("doc.graphql")
	require.True(t, ok)
	assert.Equal(t, "{ hero { name appearsIn } }", entry.Text)
	assert.Equal(t, 2, entry.Version)
	assert.Empty(t, result.Diagnostics)
	assert.True(t, entry.Parse.OK())
}

func TestDidChangeFinalTextDecidesDiagnostics(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { name } }", Version: 1})
	require.NoError(t, err)

	result, err := s.DidChange(ctx, DidChangeParams{
		URI:     "doc.graphql",
		Version: 2,
		Changes: []document.Edit{
			fullText("{ hero { id } }"),
			rangedEdit(0, 9, 0, 11, "nickname"),
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0].Message, "nickname")
}

func TestDidChangeOnClosedDocumentOpensIt(t *testing.T) {
	s, root := starWarsProject(t, nil)
	ctx := context.Background()
	docURI := fileURI(root, "test2.graphql")

	result, err := s.DidChange(ctx, DidChangeParams{
		URI:     docURI,
		Version: 1,
		Changes: []document.Edit{
			fullText("{ hero { "),
			fullText("{ hero { name } }"),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)

	entry, ok := s.store.Get(docURI)
	require.True(t, ok)
	assert.Equal(t, "{ hero { name } }", entry.Text)
}

func TestDidChangeDropsStaleVersion(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	opened, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { nickname } }", Version: 5})
	require.NoError(t, err)

	result, err := s.DidChange(ctx, DidChangeParams{
		URI:     "doc.graphql",
		Version: 3,
		Changes: []document.Edit{fullText("{ hero { name } }")},
	})
	require.NoError(t, err)
	assert.Equal(t, opened, result)

	entry, _ := s.store.Get("doc.graphql")
	assert.Equal(t, "{ hero { nickname } }", entry.Text)
	assert.Equal(t, 5, entry.Version)

	// The same version is not stale.
	result, err = s.DidChange(ctx, DidChangeParams{
		URI:     "doc.graphql",
		Version: 5,
		Changes: []document.Edit{fullText("{ hero { name } }")},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)
}

func TestSemanticErrorThenFix(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	result, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero(episode: NEWHOP) { name } }", Version: 1})
	require.NoError(t, err)
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, tooling.DiagnosticSeverityError, result.Diagnostics[0].Severity)

	result, err = s.DidChange(ctx, DidChangeParams{
		URI:     "doc.graphql",
		Version: 2,
		Changes: []document.Edit{rangedEdit(0, 16, 0, 22, "NEWHOPE")},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)
}

func TestDeprecatedUsageIsWarning(t *testing.T) {
	s, _ := starWarsProject(t, nil)

	result, err := s.DidOpen(context.Background(), TextDocumentItem{URI: "doc.graphql", Text: "{ hero { secretBackstory } }", Version: 1})
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, tooling.DiagnosticSeverityWarning, result.Diagnostics[0].Severity)
}

func TestDidSaveIsIdempotent(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()
	text := "{ hero { name nickname } }"

	first, err := s.DidSave(ctx, DidSaveParams{URI: "doc.graphql", Version: 1, Text: &text})
	require.NoError(t, err)
	second, err := s.DidSave(ctx, DidSaveParams{URI: "doc.graphql", Version: 1, Text: &text})
	require.NoError(t, err)

	assert.NotEmpty(t, first.Diagnostics)
	assert.Equal(t, first, second)
}

func TestDidSaveWithoutText(t *testing.T) {
	s, root := starWarsProject(t, map[string]string{
		"saved.graphql": "{ hero { nickname } }",
	})
	ctx := context.Background()

	t.Run("open document keeps its text and version", func(t *testing.T) {
		_, err := s.DidOpen(ctx, TextDocumentItem{URI: "open.graphql", Text: "{ hero { name } }", Version: 4})
		require.NoError(t, err)

		result, err := s.DidSave(ctx, DidSaveParams{URI: "open.graphql"})
		require.NoError(t, err)
		assert.Equal(t, 4, result.Version)
		assert.Empty(t, result.Diagnostics)
	})

	t.Run("closed document is read from disk", func(t *testing.T) {
		docURI := fileURI(root, "saved.graphql")

		result, err := s.DidSave(ctx, DidSaveParams{URI: docURI, Version: 1})
		require.NoError(t, err)
		assert.Len(t, result.Diagnostics, 1)

		entry, ok := s.store.Get(docURI)
		require.True(t, ok)
		assert.Equal(t, "{ hero { nickname } }", entry.Text)
	})

	t.Run("unreadable closed document stays closed", func(t *testing.T) {
		docURI := fileURI(root, "missing.graphql")

		result, err := s.DidSave(ctx, DidSaveParams{URI: docURI})
		require.NoError(t, err)
		assert.Empty(t, result.Diagnostics)

		_, ok := s.store.Get(docURI)
		assert.False(t, ok)
	})
}

func TestOpenThenCloseLeavesNoTrace(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { ...f } }", Version: 1})
	require.NoError(t, err)
	require.NoError(t, s.DidClose(ctx, "doc.graphql"))

	list, err := s.Completion(ctx, PositionParams{URI: "doc.graphql", Position: pos(0, 9)})
	require.NoError(t, err)
	assert.Nil(t, list)

	locations, err := s.Definition(ctx, PositionParams{URI: "doc.graphql", Position: pos(0, 13)})
	require.NoError(t, err)
	assert.Nil(t, locations)

	assert.Equal(t, 0, s.store.Len())
	assert.NoError(t, s.DidClose(ctx, "doc.graphql"))
}

func TestCompletionOnEmptyDocument(t *testing.T) {
	s := New(Options{})
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "empty.graphql", Text: "", Version: 0})
	require.NoError(t, err)

	list, err := s.Completion(ctx, PositionParams{URI: "empty.graphql", Position: pos(0, 0)})
	require.NoError(t, err)
	require.NotNil(t, list)

	labels := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.ElementsMatch(t, []string{"query", "mutation", "subscription", "fragment", "{"}, labels)
}

func TestCompletionEmptyButValid(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { zzz } }", Version: 1})
	require.NoError(t, err)

	list, err := s.Completion(ctx, PositionParams{URI: "doc.graphql", Position: pos(0, 12)})
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.NotNil(t, list.Items)
	assert.Empty(t, list.Items)

	list, err = s.Completion(ctx, PositionParams{URI: "doc.graphql", Position: pos(0, 9)})
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.NotEmpty(t, list.Items)
}

func TestCompletionUsesFragmentsOfOtherDocuments(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{
		URI: "fragments.graphql",
		Text: "fragment droidBits on Droid { primaryFunction }\n" +
			"fragment reviewBits on Review { stars }\n" +
			"fragment humanBits on Human { homePlanet }\n",
		Version: 1,
	})
	require.NoError(t, err)
	_, err = s.DidOpen(ctx, TextDocumentItem{
		URI:     "broken.graphql",
		Text:    "fragment heroBits on Character { name }\n{ hero {",
		Version: 1,
	})
	require.NoError(t, err)
	_, err = s.DidOpen(ctx, TextDocumentItem{URI: "query.graphql", Text: "{ hero { ...", Version: 1})
	require.NoError(t, err)

	list, err := s.Completion(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 12)})
	require.NoError(t, err)
	require.NotNil(t, list)

	labels := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"heroBits", "droidBits", "humanBits"}, labels)
}

func TestResolveCompletionItem(t *testing.T) {
	s, _ := starWarsProject(t, nil)

	item, err := s.ResolveCompletionItem(context.Background(), tooling.CompletionItem{
		Label: "hero",
		Kind:  tooling.CompletionKindField,
		Data:  &tooling.CompletionData{ParentType: "Query", Name: "hero"},
	})
	require.NoError(t, err)
	assert.Contains(t, item.Documentation, "Returns the hero of an episode")
}

func TestMalformedRequests(t *testing.T) {
	s := New(Options{})
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{Text: "{ a }"})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = s.DidChange(ctx, DidChangeParams{Version: 1})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = s.DidSave(ctx, DidSaveParams{})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	assert.ErrorIs(t, s.DidClose(ctx, ""), ErrMalformedRequest)

	_, err = s.Completion(ctx, PositionParams{URI: "doc.graphql"})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = s.Definition(ctx, PositionParams{URI: "doc.graphql"})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	_, err = s.Definition(ctx, PositionParams{URI: "doc.graphql", Position: pos(-1, 0)})
	assert.ErrorIs(t, err, ErrMalformedRequest)

	// A malformed request does not disturb the session.
	result, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ a }", Version: 1})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)
}

func TestDefinitionInSiblingFile(t *testing.T) {
	s, root := starWarsProject(t, map[string]string{
		"testFragment.graphql": "fragment testFragment on Character { name }\n",
		"notes.txt":            "fragment testFragment on Character { id }\n",
	})
	ctx := context.Background()
	docURI := fileURI(root, "test.graphql")

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: docURI, Text: "query { hero { ...testFragment } }", Version: 1})
	require.NoError(t, err)

	locations, err := s.Definition(ctx, PositionParams{URI: docURI, Position: pos(0, 20)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, fileURI(root, "testFragment.graphql"), locations[0].URI)
	assert.Equal(t, tooling.Range{
		Start: tooling.Position{Line: 0, Character: 9},
		End:   tooling.Position{Line: 0, Character: 21},
	}, locations[0].Range)
}

func TestDefinitionPrefersOpenDocuments(t *testing.T) {
	s, root := starWarsProject(t, map[string]string{
		"frag.graphql": "fragment shared on Character { name }\n",
	})
	ctx := context.Background()

	// The unsaved copy moved the definition to the second line.
	_, err := s.DidOpen(ctx, TextDocumentItem{
		URI:     fileURI(root, "frag.graphql"),
		Text:    "\nfragment shared on Character { id }\n",
		Version: 2,
	})
	require.NoError(t, err)
	_, err = s.DidOpen(ctx, TextDocumentItem{URI: "query.graphql", Text: "{ hero { ...shared } }", Version: 1})
	require.NoError(t, err)

	locations, err := s.Definition(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, fileURI(root, "frag.graphql"), locations[0].URI)
	assert.Equal(t, 1, locations[0].Range.Start.Line)
}

func TestRequestsAnswerFromSnapshot(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "frag.graphql", Text: "fragment shared on Character { name }\n", Version: 1})
	require.NoError(t, err)
	_, err = s.DidOpen(ctx, TextDocumentItem{URI: "query.graphql", Text: "{ hero { ...shared } }", Version: 1})
	require.NoError(t, err)

	snap := s.Snapshot()

	_, err = s.DidChange(ctx, DidChangeParams{
		URI:     "query.graphql",
		Version: 2,
		Changes: []document.Edit{fullText("{ hero { name } }")},
	})
	require.NoError(t, err)

	// The request started before the change, so it still sees the spread.
	locations, err := s.DefinitionIn(ctx, snap, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "frag.graphql", locations[0].URI)

	locations, err = s.Definition(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
	require.NoError(t, err)
	assert.NotNil(t, locations)
	assert.Empty(t, locations)

	list, err := s.CompletionIn(ctx, snap, PositionParams{URI: "query.graphql", Position: pos(0, 12)})
	require.NoError(t, err)
	require.NotNil(t, list)
}

func TestSnapshotKeepsOtherDocuments(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "frag.graphql", Text: "fragment shared on Character { name }\n", Version: 1})
	require.NoError(t, err)
	_, err = s.DidOpen(ctx, TextDocumentItem{URI: "query.graphql", Text: "{ hero { ...shared } }", Version: 1})
	require.NoError(t, err)

	snap := s.Snapshot()
	require.NoError(t, s.DidClose(ctx, "frag.graphql"))

	locations, err := s.DefinitionIn(ctx, snap, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "frag.graphql", locations[0].URI)

	locations, err = s.Definition(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
	require.NoError(t, err)
	assert.Empty(t, locations)

	// A snapshot taken before the document opened does not see it.
	list, err := s.CompletionIn(ctx, Snapshot{}, PositionParams{URI: "query.graphql", Position: pos(0, 9)})
	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestInitializeNewRootDropsScannedFiles(t *testing.T) {
	s, root := starWarsProject(t, map[string]string{
		"testFragment.graphql": "fragment testFragment on Character { name }\n",
	})
	ctx := context.Background()
	docURI := fileURI(root, "test.graphql")

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: docURI, Text: "query { hero { ...testFragment } }", Version: 1})
	require.NoError(t, err)
	locations, err := s.Definition(ctx, PositionParams{URI: docURI, Position: pos(0, 20)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	cached := s.asts.Size()
	require.NotZero(t, cached)

	_, err = s.Initialize(ctx, InitializeParams{RootPath: root})
	require.NoError(t, err)
	assert.Equal(t, cached, s.asts.Size())

	_, err = s.Initialize(ctx, InitializeParams{RootPath: t.TempDir()})
	require.NoError(t, err)
	assert.Zero(t, s.asts.Size())
}

func TestDefinitionOfNamedType(t *testing.T) {
	s, root := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{
		URI:     "query.graphql",
		Text:    "query ($ep: Episode) { hero(episode: $ep) { name } }",
		Version: 1,
	})
	require.NoError(t, err)

	locations, err := s.Definition(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, fileURI(root, "schema.graphql"), locations[0].URI)
	assert.Equal(t, 6, locations[0].Range.Start.Line)
}

func TestDefinitionNothingFound(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "query.graphql", Text: "{ hero { ...missing } }", Version: 1})
	require.NoError(t, err)

	t.Run("not a reference", func(t *testing.T) {
		locations, err := s.Definition(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 3)})
		require.NoError(t, err)
		require.NotNil(t, locations)
		assert.Empty(t, locations)
	})

	t.Run("undefined fragment", func(t *testing.T) {
		locations, err := s.Definition(ctx, PositionParams{URI: "query.graphql", Position: pos(0, 14)})
		require.NoError(t, err)
		require.NotNil(t, locations)
		assert.Empty(t, locations)
	})
}

// blockingLocator parks type lookups until released.
type blockingLocator struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingLocator) Definition(ctx context.Context, name string) (tooling.Location, bool) {
	close(b.started)
	<-b.release
	return tooling.Location{URI: "schema.graphql"}, true
}

func TestDefinitionAfterConcurrentClose(t *testing.T) {
	for _, reopen := range []bool{false, true} {
		t.Run(fmt.Sprintf("reopen=%v", reopen), func(t *testing.T) {
			s := New(Options{})
			ctx := context.Background()
			locator := &blockingLocator{started: make(chan struct{}), release: make(chan struct{})}
			s.resolver = definition.NewResolver(definition.Config{}, nil, locator, nil)

			text := "query ($ep: Episode) { hero { name } }"
			_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: text, Version: 1})
			require.NoError(t, err)

			type outcome struct {
				locations []tooling.Location
				err       error
			}
			done := make(chan outcome, 1)
			go func() {
				locations, err := s.Definition(ctx, PositionParams{URI: "doc.graphql", Position: pos(0, 14)})
				done <- outcome{locations, err}
			}()

			<-locator.started
			require.NoError(t, s.DidClose(ctx, "doc.graphql"))
			if reopen {
				_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: text, Version: 1})
				require.NoError(t, err)
			}
			close(locator.release)

			result := <-done
			require.NoError(t, result.err)
			assert.Nil(t, result.locations)
		})
	}
}

func TestInitializeReanalyzesOpenDocuments(t *testing.T) {
	root := fixtures.WriteProject(t, map[string]string{"schema.graphql": fixtures.StarWarsSDL})

	var (
		mu        sync.Mutex
		published []Result
	)
	s := New(Options{
		LoadProject: func(string) (Project, error) {
			return Project{Schema: []string{"schema.graphql"}}, nil
		},
		OnDiagnostics: func(result Result) {
			mu.Lock()
			published = append(published, result)
			mu.Unlock()
		},
	})
	ctx := context.Background()

	// Without a schema only syntax is checked.
	result, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { nickname } }", Version: 1})
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)

	_, err = s.Initialize(ctx, InitializeParams{RootPath: root})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 1)
	assert.Equal(t, "doc.graphql", published[0].URI)
	assert.Len(t, published[0].Diagnostics, 1)

	entry, _ := s.store.Get("doc.graphql")
	assert.Len(t, entry.Diagnostics, 1)
}

func TestReanalyzeKeepsNewerAnalysis(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	_, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { nickname } }", Version: 1})
	require.NoError(t, err)
	stale, _ := s.store.Get("doc.graphql")

	_, err = s.DidChange(ctx, DidChangeParams{URI: "doc.graphql", Version: 2, Changes: []document.Edit{fullText("{ hero { name } }")}})
	require.NoError(t, err)

	// A recompute started from the superseded entry must not land.
	_, ok := s.store.Commit(stale, s.analyze(ctx, stale.Text))
	assert.False(t, ok)

	entry, _ := s.store.Get("doc.graphql")
	assert.Equal(t, 2, entry.Version)
	assert.Empty(t, entry.Diagnostics)

	results := s.Reanalyze(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Version)
}

func TestSchemaChangeOnDiskReanalyzes(t *testing.T) {
	root := fixtures.WriteProject(t, map[string]string{"schema.graphql": fixtures.StarWarsSDL})

	published := make(chan Result, 16)
	s := New(Options{
		LoadProject: func(string) (Project, error) {
			return Project{
				Schema:        []string{"schema.graphql"},
				Watch:         true,
				WatchDebounce: 20 * time.Millisecond,
			}, nil
		},
		OnDiagnostics: func(result Result) {
			select {
			case published <- result:
			default:
			}
		},
	})
	ctx := context.Background()
	_, err := s.Initialize(ctx, InitializeParams{RootPath: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(ctx) })

	result, err := s.DidOpen(ctx, TextDocumentItem{URI: "doc.graphql", Text: "{ hero { nickname } }", Version: 1})
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)

	updated := strings.ReplaceAll(fixtures.StarWarsSDL, "  name: String\n", "  name: String\n  nickname: String\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "schema.graphql"), []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		entry, ok := s.store.Get("doc.graphql")
		return ok && len(entry.Diagnostics) == 0
	}, 3*time.Second, 20*time.Millisecond)

	timeout := time.After(3 * time.Second)
	for {
		select {
		case result := <-published:
			if len(result.Diagnostics) == 0 {
				assert.Equal(t, "doc.graphql", result.URI)
				return
			}
		case <-timeout:
			t.Fatal("expected diagnostics to be published after the schema change")
		}
	}
}

func TestConcurrentDocuments(t *testing.T) {
	s, _ := starWarsProject(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		docURI := fmt.Sprintf("doc%d.graphql", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.DidOpen(ctx, TextDocumentItem{URI: docURI, Text: "{ hero { } }", Version: 1})
			assert.NoError(t, err)
			for v := 2; v <= 10; v++ {
				_, err := s.DidChange(ctx, DidChangeParams{
					URI:     docURI,
					Version: v,
					Changes: []document.Edit{fullText(fmt.Sprintf("{ hero { name } } # %d", v))},
				})
				assert.NoError(t, err)
				_, err = s.Completion(ctx, PositionParams{URI: docURI, Position: pos(0, 9)})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		entry, ok := s.store.Get(fmt.Sprintf("doc%d.graphql", i))
		require.True(t, ok)
		assert.Equal(t, 10, entry.Version)
		assert.Equal(t, "{ hero { name } } # 10", entry.Text)
		assert.Empty(t, entry.Diagnostics)
	}
	assert.Equal(t, 0, s.seq.pending())
}

func TestPathOf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.graphql")

	got, err := pathOf(string(uri.File(path)))
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = pathOf(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = pathOf("untitled:Untitled-1")
	assert.Error(t, err)
}
