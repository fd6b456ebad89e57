// Package samplegen generates synthetic person CSV files for demos,
// benchmarks and tests.
package samplegen

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eunmann/csvload/pkg/fileutil"
	"github.com/eunmann/csvload/pkg/person"
)

// Header is the column layout written by the generator. The leading Id
// column is ignored by the importer.
var Header = []string{"Id", "Name", "Surname", "Initials", "Age", "DateOfBirth"}

// DateLayout writes birth dates as zero-padded DD/MM/YYYY.
const DateLayout = "02/01/2006"

// DefaultSeed makes generation reproducible when Config.Seed is zero.
const DefaultSeed = 42

// MaxRows bounds a single file. The name lists and birth date range allow
// roughly nine million distinct people.
const MaxRows = 5_000_000

var firstNames = []string{
	"Michael", "Sarah", "David", "Emma", "James", "Mary Anne", "Daniel", "Olivia",
	"Jean-Luc", "Sophia", "John", "Emily", "Maria", "Liam", "Anna Maria", "Grace",
	"Christopher", "Chloe", "Juan Carlos", "Anna Maria Teresa",
}

var lastNames = []string{
	"Mthembu", "Naidoo", "van der Merwe", "Dlamini", "Botha", "Nkosi", "Petersen",
	"Khumalo", "Adams", "de Villiers", "Ndlovu", "Jacobs", "Mokoena", "Williams",
	"Sithole", "Steyn", "Zulu", "Coetzee", "Pillay", "Mahlangu",
}

// Config configures generation.
type Config struct {
	// Rows is the number of distinct people to write.
	Rows int
	// Seed for reproducible output. 0 = DefaultSeed.
	Seed int64
	// Now anchors ages and birth dates. Zero means time.Now().
	Now time.Time
}

// Person is one generated row.
type Person struct {
	ID          int
	Name        string
	Surname     string
	Initials    string
	Age         int
	DateOfBirth time.Time
}

// Record renders p as a CSV row matching Header.
func (p Person) Record() []string {
	return []string{
		strconv.Itoa(p.ID),
		p.Name,
		p.Surname,
		p.Initials,
		strconv.Itoa(p.Age),
		p.DateOfBirth.Format(DateLayout),
	}
}

// Generator produces people with unique (name, surname, date of birth)
// identities, so every generated row survives import.
type Generator struct {
	cfg  Config
	rng  *rand.Rand
	seen map[string]struct{}
	next int
}

// NewGenerator creates a generator for cfg.
func NewGenerator(cfg Config) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		seen: make(map[string]struct{}, cfg.Rows),
		next: 1,
	}
}

// Next returns the next distinct person.
func (g *Generator) Next() Person {
	for {
		p := g.candidate()
		key := p.Name + "|" + p.Surname + "|" + p.DateOfBirth.Format(person.ISODateLayout)
		if _, dup := g.seen[key]; dup {
			continue
		}
		g.seen[key] = struct{}{}
		p.ID = g.next
		g.next++
		return p
	}
}

func (g *Generator) candidate() Person {
	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	age := 18 + g.rng.Intn(63)
	days := g.rng.Intn(365)

	now := g.cfg.Now
	dob := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(-age, 0, -days)

	return Person{
		Name:        first,
		Surname:     last,
		Initials:    initials(first),
		Age:         age,
		DateOfBirth: dob,
	}
}

// initials takes the first letter of each word: "Mary Anne" -> "MA".
func initials(name string) string {
	var sb strings.Builder
	for _, word := range strings.Fields(name) {
		sb.WriteString(strings.ToUpper(word[:1]))
	}
	return sb.String()
}

// Write writes the header and cfg.Rows people to w.
func (g *Generator) Write(w io.Writer) (int, error) {
	if g.cfg.Rows < 0 || g.cfg.Rows > MaxRows {
		return 0, fmt.Errorf("rows must be within [0, %d], got %d", MaxRows, g.cfg.Rows)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < g.cfg.Rows; i++ {
		if err := cw.Write(g.Next().Record()); err != nil {
			return i, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return g.cfg.Rows, fmt.Errorf("flush csv: %w", err)
	}
	return g.cfg.Rows, nil
}

// WriteFile writes a generated file to path, gzip-compressed when path
// ends in .gz. The file appears under path only once complete.
func WriteFile(path string, cfg Config) (int, error) {
	var n int
	err := fileutil.WriteTmpThenMove(filepath.Dir(path), path, func(tmpPath string) error {
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", tmpPath, err)
		}
		defer f.Close()

		var w io.Writer = f
		var gz *gzip.Writer
		if strings.HasSuffix(strings.ToLower(path), ".gz") {
			gz = gzip.NewWriter(f)
			w = gz
		}

		if n, err = NewGenerator(cfg).Write(w); err != nil {
			return err
		}
		if gz != nil {
			if err := gz.Close(); err != nil {
				return fmt.Errorf("close gzip writer: %w", err)
			}
		}
		return f.Close()
	})
	return n, err
}
