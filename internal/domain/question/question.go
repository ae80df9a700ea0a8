package question

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OptionKey is one of the fixed lettered choices of a question.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

// NumOptions is the size of the fixed option key set.
const NumOptions = 4

// OptionKeys lists the fixed key set in display order.
var OptionKeys = [NumOptions]OptionKey{OptionA, OptionB, OptionC, OptionD}

// Index returns the position of k in OptionKeys, or -1.
func (k OptionKey) Index() int {
	for i, key := range OptionKeys {
		if key == k {
			return i
		}
	}
	return -1
}

func (k OptionKey) Valid() bool { return k.Index() >= 0 }

type Content struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type Option struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Present reports whether the option carries any content.
func (o Option) Present() bool {
	return strings.TrimSpace(o.Text) != "" || strings.TrimSpace(o.Image) != ""
}

type Explanation struct {
	Text string `json:"text"`
}

// Options holds exactly one Option per key in OptionKeys, in the same order.
// It serialises as an object keyed by option letter.
type Options [NumOptions]Option

func (o Options) Get(k OptionKey) (Option, bool) {
	i := k.Index()
	if i < 0 {
		return Option{}, false
	}
	return o[i], true
}

func (o *Options) Set(k OptionKey, opt Option) error {
	i := k.Index()
	if i < 0 {
		return fmt.Errorf("unknown option key %q", k)
	}
	o[i] = opt
	return nil
}

func (o Options) MarshalJSON() ([]byte, error) {
	m := make(map[OptionKey]Option, NumOptions)
	for i, k := range OptionKeys {
		m[k] = o[i]
	}
	return json.Marshal(m)
}

// UnmarshalJSON requires exactly the fixed key set.
func (o *Options) UnmarshalJSON(b []byte) error {
	var m map[string]Option
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Options
	var seen [NumOptions]bool
	for k, v := range m {
		key := OptionKey(strings.TrimSpace(k))
		if err := out.Set(key, v); err != nil {
			return err
		}
		seen[key.Index()] = true
	}
	var missing []string
	for i, k := range OptionKeys {
		if !seen[i] {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing option keys %s", strings.Join(missing, ","))
	}
	*o = out
	return nil
}

// Question is the aggregate root of the bank.
type Question struct {
	UID        string    `json:"uid,omitempty" validate:"required"`
	Content    Content   `json:"question"`
	Options    Options   `json:"options"`
	Answer     OptionKey `json:"answer" validate:"required,optionkey"`
	Difficulty string    `json:"difficulty,omitempty"`
	// Tags is a set: trimmed, deduplicated and sorted once normalised. Questions read from the
	// store always carry a non-nil slice in that form.
	Tags        []string    `json:"tags"`
	Explanation Explanation `json:"explanation"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at,omitempty"`
}

// NewUID returns a fresh question identifier.
func NewUID() string { return uuid.NewString() }

// EnsureUID assigns a fresh uid when none is set and reports whether it did.
func (q *Question) EnsureUID() bool {
	if strings.TrimSpace(q.UID) != "" {
		return false
	}
	q.UID = NewUID()
	return true
}

// NormalizeTags trims, drops blanks, dedupes and sorts tag labels.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Normalize puts the question in its canonical in-memory form.
func (q *Question) Normalize() {
	q.UID = strings.TrimSpace(q.UID)
	q.Answer = OptionKey(strings.ToUpper(strings.TrimSpace(string(q.Answer))))
	q.Difficulty = strings.TrimSpace(q.Difficulty)
	q.Tags = NormalizeTags(q.Tags)
}
