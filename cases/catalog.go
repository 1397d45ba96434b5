/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cases loads the catalog of playable detective cases and their
// answer keys.
package cases

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Seednode/enigma/verdict"
)

//go:embed cases.yaml
var defaultCatalog []byte

var ErrCaseNotFound = errors.New("case not found")

// Document is one readable file in a case folder.
type Document struct {
	Name string `json:"name" yaml:"name"`
	File string `json:"file" yaml:"file"`
}

// Options are the choices offered on the resolution form.
type Options struct {
	Suspects []string `json:"suspects" yaml:"suspects"`
	Methods  []string `json:"methods" yaml:"methods"`
	Evidence []string `json:"evidence" yaml:"evidence"`
}

// Case is a playable case. Key is withheld from JSON.
type Case struct {
	ID             string                `json:"id" yaml:"id"`
	Title          string                `json:"title" yaml:"title"`
	Difficulty     int                   `json:"difficulty" yaml:"difficulty"`
	Documents      map[string][]Document `json:"documents" yaml:"documents"`
	FinalDocuments map[string]string     `json:"solution" yaml:"final_documents"`
	Options        Options               `json:"options" yaml:"options"`
	Key            verdict.Solution      `json:"-" yaml:"answer_key"`
}

func (c Case) validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("missing id")
	}
	if c.Difficulty < 1 || c.Difficulty > 3 {
		return fmt.Errorf("difficulty must be between 1-3 inclusive: %d", c.Difficulty)
	}
	if c.Key.Culprit == "" {
		return errors.New("answer key has no culprit")
	}
	if len(c.Options.Suspects) > 0 && !slices.Contains(c.Options.Suspects, c.Key.Culprit) {
		return fmt.Errorf("culprit %q is not among the suspects", c.Key.Culprit)
	}
	if len(c.Options.Methods) > 0 && !slices.Contains(c.Options.Methods, c.Key.Method) {
		return fmt.Errorf("method %q is not among the methods", c.Key.Method)
	}
	for _, idx := range c.Key.KeyEvidence {
		if idx < 0 || idx >= len(c.Options.Evidence) {
			return fmt.Errorf("key evidence index %d out of range", idx)
		}
	}
	return nil
}

// Catalog is an immutable, ordered set of cases.
type Catalog struct {
	cases []Case
	byID  map[string]int
}

type catalogFile struct {
	Cases []Case `yaml:"cases"`
}

// Load parses a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	var f catalogFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse case catalog: %w", err)
	}

	c := &Catalog{
		cases: f.Cases,
		byID:  make(map[string]int, len(f.Cases)),
	}

	for i, cs := range f.Cases {
		if err := cs.validate(); err != nil {
			return nil, fmt.Errorf("case %d (%q): %w", i, cs.ID, err)
		}
		if _, dup := c.byID[cs.ID]; dup {
			return nil, fmt.Errorf("case %q is listed twice", cs.ID)
		}
		c.byID[cs.ID] = i
	}

	return c, nil
}

// LoadFile reads a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Default returns the catalog built into the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// Len returns the number of cases.
func (c *Catalog) Len() int {
	return len(c.cases)
}

// List returns every case in catalog order.
func (c *Catalog) List() []Case {
	return slices.Clone(c.cases)
}

// Get looks a case up by id.
func (c *Catalog) Get(id string) (Case, error) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Case{}, fmt.Errorf("case %q: %w", id, ErrCaseNotFound)
	}
	return c.cases[i], nil
}

// Score grades an answer for the given case.
func (c *Catalog) Score(id string, a verdict.Answer) (verdict.Result, error) {
	cs, err := c.Get(id)
	if err != nil {
		return verdict.Result{}, err
	}
	return verdict.Score(a.Normalize(), cs.Key), nil
}
