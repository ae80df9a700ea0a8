// Package corpus reads and writes the legacy flat-file question corpus: a JSON array of question
// documents in one file, or a directory of such files.
package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const maxParallelFiles = 8

// Record is one decoded document.
type Record struct {
	File     string
	Index    int
	Question question.Question
	// Enriched is set when the document had no uid and one was assigned while loading.
	Enriched bool
}

// Failure is a document that could not be decoded into a Question.
type Failure struct {
	File  string
	Index int
	UID   string
	Err   error
}

// Corpus is a loaded corpus. Records and Failures are ordered by file name, then position.
type Corpus struct {
	Path     string
	Records  []Record
	Failures []Failure

	files []*file
}

type file struct {
	path string
	docs []json.RawMessage
}

// Load reads the corpus at path. A document that fails to decode is reported in Failures and does
// not fail the load; a file that cannot be read or is not a JSON array does.
func Load(ctx context.Context, path string, log *logger.Logger) (*Corpus, error) {
	if log == nil {
		log = logger.Nop()
	}
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, question.NewError(question.CodeSourceNotFound, "corpus.load", fmt.Sprintf("source %q not found", path), err)
		}
		return nil, question.Wrap(question.CodeIOFailure, "corpus.load", err)
	}

	paths := []string{path}
	if info.IsDir() {
		if paths, err = jsonFiles(path); err != nil {
			return nil, err
		}
	}

	files := make([]*file, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return question.Wrap(question.CodeIOFailure, "corpus.load", err)
			}
			f, err := readFile(p)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Corpus{Path: path, files: files}
	for _, f := range files {
		for i, raw := range f.docs {
			rec, err := decode(raw)
			if err != nil {
				fail := Failure{File: f.path, Index: i, UID: peekUID(raw), Err: err}
				c.Failures = append(c.Failures, fail)
				log.Warn("malformed corpus document", "file", f.path, "index", i, "uid", fail.UID, "error", err)
				continue
			}
			rec.File, rec.Index = f.path, i
			if rec.Enriched {
				if f.docs[i], err = withUID(raw, rec.Question.UID); err != nil {
					return nil, question.Wrap(question.CodeInternal, "corpus.load", err)
				}
			}
			c.Records = append(c.Records, rec)
		}
	}
	log.Info("corpus loaded", "path", path, "files", len(files), "records", len(c.Records), "malformed", len(c.Failures))
	return c, nil
}

// Enriched reports how many documents were assigned a uid while loading.
func (c *Corpus) Enriched() int {
	n := 0
	for _, r := range c.Records {
		if r.Enriched {
			n++
		}
	}
	return n
}

// WriteBack persists assigned uids into every source file that had documents enriched. Other
// documents, malformed ones included, are written back as they were read.
func (c *Corpus) WriteBack() error {
	dirty := map[string]bool{}
	for _, r := range c.Records {
		if r.Enriched {
			dirty[r.File] = true
		}
	}
	for _, f := range c.files {
		if !dirty[f.path] {
			continue
		}
		if err := writeJSON(f.path, f.docs); err != nil {
			return err
		}
	}
	return nil
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, question.Wrap(question.CodeIOFailure, "corpus.load", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func readFile(path string) (*file, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, question.Wrap(question.CodeIOFailure, "corpus.read", err)
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, question.NewError(question.CodeMalformedRecord, "corpus.read",
			fmt.Sprintf("%s is not a JSON array of questions", path), err)
	}
	return &file{path: path, docs: docs}, nil
}

func decode(raw json.RawMessage) (Record, error) {
	var q question.Question
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&q); err != nil {
		return Record{}, question.Wrap(question.CodeMalformedRecord, "corpus.decode", err)
	}
	q.Normalize()
	rec := Record{Question: q}
	rec.Enriched = rec.Question.EnsureUID()
	return rec, nil
}

func peekUID(raw json.RawMessage) string {
	var head struct {
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return strings.TrimSpace(head.UID)
}

// withUID sets the uid field on a raw document and keeps every other field as read.
func withUID(raw json.RawMessage, uid string) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	v, err := json.Marshal(uid)
	if err != nil {
		return nil, err
	}
	doc["uid"] = v
	return json.Marshal(doc)
}
