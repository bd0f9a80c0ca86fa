package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eringen/spacetravel/content"
)

// Fixtures is the YAML layout accepted by LoadFixtures.
//
//	documents:
//	  - id: YF1
//	    uid: como-utilizar-hooks
//	    type: posts
//	    first_publication_date: 2021-03-15T19:25:28Z
//	    data: {title: Como utilizar Hooks}
//	revisions:
//	  - ref: preview-1
//	    document: {id: YF1, uid: como-utilizar-hooks, type: posts, data: {...}}
type Fixtures struct {
	Documents []FixtureDocument `yaml:"documents"`
	Revisions []FixtureRevision `yaml:"revisions"`
}

// FixtureDocument is one document in a fixture file.
type FixtureDocument struct {
	ID                   string         `yaml:"id"`
	UID                  string         `yaml:"uid"`
	Type                 string         `yaml:"type"`
	FirstPublicationDate string         `yaml:"first_publication_date"`
	LastPublicationDate  string         `yaml:"last_publication_date"`
	Data                 map[string]any `yaml:"data"`
}

// FixtureRevision is a document as seen through a preview ref.
type FixtureRevision struct {
	Ref      string          `yaml:"ref"`
	Document FixtureDocument `yaml:"document"`
}

func (f FixtureDocument) document() (content.Document, error) {
	first, err := ParseTime(f.FirstPublicationDate)
	if err != nil {
		return content.Document{}, err
	}
	last, err := ParseTime(f.LastPublicationDate)
	if err != nil {
		return content.Document{}, err
	}
	typ := f.Type
	if typ == "" {
		typ = content.PostType
	}
	data := f.Data
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return content.Document{}, fmt.Errorf("localstore: document %s: %w", f.ID, err)
	}
	return content.Document{
		ID:                   f.ID,
		UID:                  f.UID,
		Type:                 typ,
		FirstPublicationDate: first,
		LastPublicationDate:  last,
		Data:                 raw,
	}, nil
}

// LoadFixtures reads YAML fixtures from r and upserts every document and
// revision. It returns the number of documents written.
func (s *Store) LoadFixtures(ctx context.Context, r io.Reader) (int, error) {
	var fx Fixtures
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && err != io.EOF {
		return 0, fmt.Errorf("localstore: decode fixtures: %w", err)
	}
	n := 0
	for _, fd := range fx.Documents {
		d, err := fd.document()
		if err != nil {
			return n, err
		}
		if err := s.SaveDocument(ctx, d); err != nil {
			return n, fmt.Errorf("localstore: save %s: %w", d.ID, err)
		}
		n++
	}
	for _, rev := range fx.Revisions {
		d, err := rev.Document.document()
		if err != nil {
			return n, err
		}
		if err := s.SaveRevision(ctx, rev.Ref, d); err != nil {
			return n, fmt.Errorf("localstore: save revision %s@%s: %w", d.ID, rev.Ref, err)
		}
	}
	return n, nil
}

// LoadFixturesFile is LoadFixtures on the file at path.
func (s *Store) LoadFixturesFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.LoadFixtures(ctx, f)
}
