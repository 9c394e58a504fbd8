package bank

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/assessor/internal/model"
)

func testQuestion(id int, d model.Difficulty) model.Question {
	return model.Question{
		ID:           id,
		Text:         "question text",
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: id % 4,
		Difficulty:   d,
	}
}

func testBank(name string) *Bank {
	var qs []model.Question
	for id := 1; id <= 10; id++ {
		qs = append(qs, testQuestion(id, model.DifficultyBeginner))
	}
	for id := 11; id <= 20; id++ {
		qs = append(qs, testQuestion(id, model.DifficultyIntermediate))
	}
	return New(name, qs)
}

func TestBank_ByDifficultyAndCounts(t *testing.T) {
	b := testBank("Go")
	b.questions = append(b.questions, testQuestion(21, model.DifficultyAdvanced))

	assert.Len(t, b.ByDifficulty(model.DifficultyBeginner), 10)
	assert.Len(t, b.ByDifficulty(model.DifficultyIntermediate), 10)
	assert.Len(t, b.ByDifficulty(model.DifficultyAdvanced), 1)
	assert.Equal(t, map[model.Difficulty]int{
		model.DifficultyBeginner:     10,
		model.DifficultyIntermediate: 10,
		model.DifficultyAdvanced:     1,
	}, b.Counts())
	assert.Equal(t, 21, b.Len())
}

func TestBank_NewCopiesInput(t *testing.T) {
	qs := []model.Question{testQuestion(1, model.DifficultyBeginner)}
	b := New("Go", qs)
	qs[0].Text = "changed"
	qs[0].Options[0] = "changed"

	got := b.Questions()
	assert.Equal(t, "question text", got[0].Text)
	assert.Equal(t, "a", got[0].Options[0])
}

func TestBank_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *model.Question)
		wantErr string
	}{
		{"valid", func(q *model.Question) {}, ""},
		{"empty text", func(q *model.Question) { q.Text = "" }, "text is required"},
		{"bad difficulty", func(q *model.Question) { q.Difficulty = "expert" }, "unknown difficulty"},
		{"too few options", func(q *model.Question) { q.Options = []string{"only"}; q.CorrectIndex = 0 }, "options"},
		{"negative index", func(q *model.Question) { q.CorrectIndex = -1 }, "out of range"},
		{"index past end", func(q *model.Question) { q.CorrectIndex = 4 }, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := testQuestion(1, model.DifficultyBeginner)
			tt.mutate(&q)
			err := New("Go", []model.Question{q}).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBank_ValidateDuplicateIDs(t *testing.T) {
	b := New("Go", []model.Question{
		testQuestion(3, model.DifficultyBeginner),
		testQuestion(3, model.DifficultyBeginner),
	})
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")

	// The same id under a different difficulty is allowed.
	b = New("Go", []model.Question{
		testQuestion(3, model.DifficultyBeginner),
		testQuestion(3, model.DifficultyAdvanced),
	})
	assert.NoError(t, b.Validate())
}

func TestBank_RangeMismatches(t *testing.T) {
	b := New("Go", []model.Question{
		testQuestion(1, model.DifficultyBeginner),
		testQuestion(12, model.DifficultyBeginner),
		testQuestion(5, model.DifficultyIntermediate),
		testQuestion(15, model.DifficultyIntermediate),
		testQuestion(40, model.DifficultyAdvanced),
	})
	got := b.RangeMismatches()
	require.Len(t, got, 2)
	assert.Equal(t, 12, got[0].ID)
	assert.Equal(t, 5, got[1].ID)
}

func TestRegistry_ResolveRegistered(t *testing.T) {
	r := NewRegistry(DefaultSubject, testBank(DefaultSubject), nil)
	java := testBank("Core Java")
	r.Register("Core Java", java)

	assert.Same(t, java, r.Resolve("Core Java"))
}

func TestRegistry_ResolveUnknownFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	fallback := testBank(DefaultSubject)
	r := NewRegistry(DefaultSubject, testBank(DefaultSubject), logger)
	r.Register(DefaultSubject, fallback)
	r.Register("Core Java", testBank("Core Java"))

	for _, subject := range []string{"Quantum Basket Weaving", "core java", ""} {
		assert.Same(t, fallback, r.Resolve(subject), "subject %q", subject)
	}
	assert.Contains(t, buf.String(), "Quantum Basket Weaving")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestRegistry_ResolveUnknownFollowsReplacedDefault(t *testing.T) {
	builtin := testBank(DefaultSubject)
	r := NewRegistry(DefaultSubject, builtin, nil)

	// Nothing stored under the default name yet: the built-in bank serves.
	assert.Same(t, builtin, r.Resolve("Haskell"))

	first := testBank(DefaultSubject)
	r.Register(DefaultSubject, first)
	assert.Same(t, first, r.Resolve("Haskell"))

	replaced := New(DefaultSubject, []model.Question{testQuestion(1, model.DifficultyBeginner)})
	r.Register(DefaultSubject, replaced)
	assert.Same(t, replaced, r.Resolve(DefaultSubject))
	assert.Same(t, replaced, r.Resolve("Haskell"))
	assert.Equal(t, 1, r.Resolve("Haskell").Len())
}

func TestRegistry_CustomDefaultName(t *testing.T) {
	r := NewRegistry("Go", testBank(DefaultSubject), nil)
	goBank := testBank("Go")
	r.Register("Go", goBank)
	r.Register(DefaultSubject, testBank(DefaultSubject))

	assert.Equal(t, "Go", r.DefaultName())
	assert.Same(t, goBank, r.Resolve("Haskell"))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(DefaultSubject, testBank(DefaultSubject), nil)
	r.Register(DefaultSubject, testBank(DefaultSubject))
	r.Register("Go", testBank("Go"))

	removed, err := r.Unregister("Go")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{DefaultSubject}, r.Names())
	assert.Equal(t, DefaultSubject, r.Resolve("Go").Name)

	removed, err = r.Unregister("Go")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = r.Unregister(DefaultSubject)
	assert.ErrorIs(t, err, ErrDefaultBank)
	assert.Contains(t, r.Names(), DefaultSubject)
}

func TestRegistry_RegisterLastWriteWins(t *testing.T) {
	r := NewRegistry(DefaultSubject, testBank(DefaultSubject), nil)
	first := testBank("Go")
	second := testBank("Go")
	r.Register("Go", first)
	r.Register("Go", second)

	assert.Same(t, second, r.Resolve("Go"))
	assert.Equal(t, []string{"Go"}, r.Names())
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(DefaultSubject, testBank(DefaultSubject), nil)
	assert.Empty(t, r.Names())
	r.Register("Rust", testBank("Rust"))
	r.Register("Go", testBank("Go"))
	assert.Equal(t, []string{"Go", "Rust"}, r.Names())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(DefaultSubject, testBank(DefaultSubject), nil)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("Go", testBank("Go"))
		}()
		go func() {
			defer wg.Done()
			_ = r.Resolve("Go")
			_ = r.Names()
		}()
	}
	wg.Wait()
	assert.Equal(t, "Go", r.Resolve("Go").Name)
}

const yamlBank = `
subject: Go
questions:
  - id: 1
    text: What keyword starts a goroutine?
    options: ["go", "async", "spawn", "thread"]
    correct_index: 0
    difficulty: beginner
  - id: 11
    text: What does a nil channel do on receive?
    options: ["Panics", "Returns zero", "Blocks forever", "Closes"]
    correct_index: 2
    difficulty: intermediate
`

func TestParse_YAML(t *testing.T) {
	b, err := Parse([]byte(yamlBank), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "Go", b.Name)
	require.Equal(t, 2, b.Len())
	q := b.ByDifficulty(model.DifficultyIntermediate)[0]
	assert.Equal(t, 11, q.ID)
	assert.Equal(t, 2, q.CorrectIndex)
	assert.Equal(t, []string{"Panics", "Returns zero", "Blocks forever", "Closes"}, q.Options)
}

func TestParse_JSONUsesFallbackName(t *testing.T) {
	data := `{"questions":[{"id":1,"text":"Q","options":["a","b"],"correct_index":1,"difficulty":"beginner"}]}`
	b, err := Parse([]byte(data), "Python")
	require.NoError(t, err)
	assert.Equal(t, "Python", b.Name)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not an object", "[1, 2, 3]"},
		{"missing questions", "subject: Go"},
		{"unknown difficulty", `{"questions":[{"id":1,"text":"Q","options":["a","b"],"correct_index":0,"difficulty":"expert"}]}`},
		{"index out of range", `{"questions":[{"id":1,"text":"Q","options":["a","b"],"correct_index":2,"difficulty":"beginner"}]}`},
		{"extra field", `{"questions":[{"id":1,"text":"Q","options":["a","b"],"correct_index":0,"difficulty":"beginner","hint":"x"}]}`},
		{"bad yaml", "questions: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "Go")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "golang.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(yamlBank, "subject: Go\n", "", 1)), 0o644))

	b, data, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "golang", b.Name)
	assert.NotEmpty(t, data)

	_, _, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestSeeds(t *testing.T) {
	banks, err := Seeds()
	require.NoError(t, err)

	byName := make(map[string]*Bank)
	for _, b := range banks {
		byName[b.Name] = b
		assert.Empty(t, b.RangeMismatches(), "bank %s", b.Name)
	}
	require.Contains(t, byName, DefaultSubject)
	require.Contains(t, byName, "Core Java")

	def := byName[DefaultSubject]
	assert.Len(t, def.ByDifficulty(model.DifficultyBeginner), 10)
	assert.Len(t, def.ByDifficulty(model.DifficultyIntermediate), 10)
}
