package bank

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/assessor/internal/model"
)

//go:embed schema/bank.schema.json
var schemaJSON []byte

//go:embed seeds/*.yaml
var seedFS embed.FS

const schemaURL = "schema://bank.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func bankSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("parse bank schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add bank schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Parse decodes a YAML or JSON bank file, validates it against the bank
// schema and the question invariants, and returns the bank. The subject
// from the file wins; name is used when the file does not set one.
func Parse(data []byte, name string) (*Bank, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON types.
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize bank: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(js))
	if err != nil {
		return nil, fmt.Errorf("normalize bank: %w", err)
	}
	sch, err := bankSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("bank schema: %w", err)
	}

	var f model.BankFile
	if err := json.Unmarshal(js, &f); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	if f.Subject == "" {
		f.Subject = name
	}
	b := New(f.Subject, f.Questions)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("bank %q: %w", b.Name, err)
	}
	return b, nil
}

// LoadFile reads and parses one bank file. The file name without its
// extension is used when the file does not name its subject.
func LoadFile(path string) (*Bank, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	b, err := Parse(data, stem)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return b, data, nil
}

// Seeds returns the banks embedded in the binary. One of them is the
// default bank.
func Seeds() ([]*Bank, error) {
	entries, err := fs.ReadDir(seedFS, "seeds")
	if err != nil {
		return nil, fmt.Errorf("read seeds dir: %w", err)
	}
	var banks []*Bank
	for _, e := range entries {
		data, err := seedFS.ReadFile("seeds/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read seed %s: %w", e.Name(), err)
		}
		b, err := Parse(data, strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", e.Name(), err)
		}
		banks = append(banks, b)
	}
	return banks, nil
}

// LogRangeMismatches warns about questions that break the id convention.
func LogRangeMismatches(logger *slog.Logger, b *Bank) {
	for _, q := range b.RangeMismatches() {
		logger.Warn("question id outside conventional range for its difficulty",
			"subject", b.Name, "id", q.ID, "difficulty", q.Difficulty)
	}
}
