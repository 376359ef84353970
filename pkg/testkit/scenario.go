// Package testkit runs JSON-described HTTP scenarios against a handler.
//
// Each scenario file holds one request and its expectations:
//
//	{
//	  "name": "guest cannot checkout",
//	  "method": "POST",
//	  "url": "/api/orders",
//	  "headers": {"Authorization": "Bearer ${token.cliente}"},
//	  "body": {"product_id": "${product}"},
//	  "expectedCode": 400,
//	  "expectedBody": {"message": "cart is empty"}
//	}
//
// ${name} placeholders are replaced from Runner.Vars in the URL, headers
// and body. expectedBody is matched as a subset: only the keys it lists
// are compared.
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scenario is one request with its expected outcome.
type Scenario struct {
	Name         string            `json:"name"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers"`
	Body         json.RawMessage   `json:"body"`
	ExpectedCode int               `json:"expectedCode"`
	ExpectedBody json.RawMessage   `json:"expectedBody"`

	path string
}

// LoadScenario reads one scenario file. The file name is the default name.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", path, err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", path, err)
	}
	if s.URL == "" {
		return nil, fmt.Errorf("testkit: %q has no url", path)
	}
	if s.ExpectedCode == 0 {
		return nil, fmt.Errorf("testkit: %q has no expectedCode", path)
	}
	if s.Method == "" {
		s.Method = "GET"
	}
	s.Method = strings.ToUpper(s.Method)
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	s.path = path
	return &s, nil
}

// LoadDir loads every *.json file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("testkit: no scenarios in %q", dir)
	}
	sort.Strings(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// expand replaces ${name} placeholders from vars.
func expand(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "${") {
		return s
	}
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "${"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
