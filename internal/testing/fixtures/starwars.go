// Package fixtures provides the schema and project trees shared by package tests.
package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// StarWarsSDL is the schema most tests run against.
const StarWarsSDL = `schema {
  query: Query
  mutation: Mutation
}

"One of the films in the Star Wars Trilogy"
enum Episode {
  "Released in 1977."
  NEWHOPE
  "Released in 1980."
  EMPIRE
  "Released in 1983."
  JEDI
  PHANTOM @deprecated(reason: "Prequels are not supported")
}

"A character in the Star Wars Trilogy"
interface Character {
  id: String!
  name: String
  friends: [Character]
  appearsIn: [Episode]
  secretBackstory: String @deprecated(reason: "Use name instead")
}

type Human implements Character {
  id: String!
  name: String
  friends: [Character]
  appearsIn: [Episode]
  homePlanet: String
  secretBackstory: String @deprecated(reason: "Use name instead")
}

type Droid implements Character {
  id: String!
  name: String
  friends: [Character]
  appearsIn: [Episode]
  primaryFunction: String
  secretBackstory: String @deprecated(reason: "Use name instead")
}

type Review {
  stars: Int!
  commentary: String
}

input ReviewInput {
  stars: Int!
  commentary: String
}

type Query {
  "Returns the hero of an episode, or the hero of the saga without one"
  hero(episode: Episode): Character
  human(id: String!): Human
  droid(id: String!): Droid
}

type Mutation {
  createReview(episode: Episode, review: ReviewInput!): Review
}
`

// StarWarsSchema loads StarWarsSDL.
func StarWarsSchema() *ast.Schema {
	return gqlparser.MustLoadSchema(&ast.Source{Name: "starwars.graphql", Input: StarWarsSDL})
}

// WriteProject writes files (relative path -> content) under a fresh temp dir
// and returns the dir.
func WriteProject(t testing.TB, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return root
}
