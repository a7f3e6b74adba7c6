package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trading-backtestv1/internal/backtest"
)

// RequestFile is a YAML run file. It holds either a single request at the
// top level or a list under "requests".
type RequestFile struct {
	Workers  int                `yaml:"workers,omitempty"`
	Requests []backtest.Request `yaml:"requests,omitempty"`
}

// LoadRequests reads backtest requests from a YAML file. Unknown keys are
// rejected so typos surface instead of silently using defaults.
func LoadRequests(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var file RequestFile
	if _, ok := probe["requests"]; ok {
		if err := decodeStrict(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &file, nil
	}

	var req backtest.Request
	if err := decodeStrict(data, &req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	file.Requests = []backtest.Request{req}
	return &file, nil
}

// LoadRequest reads a file holding exactly one request.
func LoadRequest(path string) (backtest.Request, error) {
	file, err := LoadRequests(path)
	if err != nil {
		return backtest.Request{}, err
	}
	if len(file.Requests) != 1 {
		return backtest.Request{}, fmt.Errorf("%s: want one request, found %d", path, len(file.Requests))
	}
	return file.Requests[0], nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
