package statedb

import (
	"embed"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"
)

//go:embed data/states.csv
var statesCSV embed.FS

type StateDB struct {
	byCode map[string]string
	byName map[string]string
}

func New() (*StateDB, error) {
	f, err := statesCSV.Open("data/states.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded csv: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	db := &StateDB{
		byCode: make(map[string]string, len(records)-1),
		byName: make(map[string]string, len(records)-1),
	}
	for _, rec := range records[1:] {
		if len(rec) < 2 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(rec[0]))
		name := strings.TrimSpace(rec[1])
		if code == "" || name == "" {
			continue
		}
		db.byCode[code] = name
		db.byName[strings.ToLower(name)] = code
	}
	return db, nil
}

var (
	defaultOnce sync.Once
	defaultDB   *StateDB
	defaultErr  error
)

// Default returns a process-wide StateDB, loaded on first use.
func Default() (*StateDB, error) {
	defaultOnce.Do(func() {
		defaultDB, defaultErr = New()
	})
	return defaultDB, defaultErr
}

// Name returns the state name for a two-letter code.
func (db *StateDB) Name(code string) (string, bool) {
	if db == nil {
		return "", false
	}
	v, ok := db.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return v, ok
}

// Resolve accepts either a code or a full name and returns both. Unknown labels resolve to themselves
// as the name with an empty code.
func (db *StateDB) Resolve(label string) (code, name string) {
	label = strings.TrimSpace(label)
	if n, ok := db.Name(label); ok {
		return strings.ToUpper(label), n
	}
	if db != nil {
		if c, ok := db.byName[strings.ToLower(label)]; ok {
			return c, db.byCode[c]
		}
	}
	return "", label
}
