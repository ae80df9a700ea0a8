package corpus

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

// Save writes qs to path as an indented JSON array, replacing the file atomically.
func Save(path string, qs []question.Question) error {
	if qs == nil {
		qs = []question.Question{}
	}
	return writeJSON(path, qs)
}

// Append adds doc to the corpus file at path. A missing file is created; a file that does not
// hold a JSON array is logged and replaced by a new list.
func Append(path string, doc question.Question, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	var docs []json.RawMessage
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return question.Wrap(question.CodeIOFailure, "corpus.append", err)
	default:
		if err := json.Unmarshal(b, &docs); err != nil {
			log.Error("invalid corpus file, starting a new list", "path", path, "error", err)
			docs = nil
		}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return question.Wrap(question.CodeMalformedRecord, "corpus.append", err)
	}
	docs = append(docs, raw)
	return writeJSON(path, docs)
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return question.Wrap(question.CodeInternal, "corpus.write", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return question.Wrap(question.CodeIOFailure, "corpus.write", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return question.Wrap(question.CodeIOFailure, "corpus.write", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return question.Wrap(question.CodeIOFailure, "corpus.write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return question.Wrap(question.CodeIOFailure, "corpus.write", err)
	}
	if err := tmp.Close(); err != nil {
		return question.Wrap(question.CodeIOFailure, "corpus.write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return question.Wrap(question.CodeIOFailure, "corpus.write", err)
	}
	return nil
}
