package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// bootstrapConfig lists the graphs registered when the server starts.
type bootstrapConfig struct {
	Graphs []graphConfig `yaml:"graphs"`
}

type graphConfig struct {
	ID string `yaml:"id"`

	// Path to a JSON schema file, relative to the bootstrap file.
	Schema string `yaml:"schema"`

	Properties       map[string]string `yaml:"properties"`
	Parents          []string          `yaml:"parents"`
	ParentProperties string            `yaml:"parentProperties"`
	Auths            []string          `yaml:"auths"`
}

// graphAdder is satisfied by the federated store.
type graphAdder interface {
	AddGraph(op *operation.AddGraph, user store.User) error
}

func loadBootstrap(path string) (*bootstrapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap file: %w", err)
	}

	var cfg bootstrapConfig
	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse bootstrap file %q: %w", path, err)
	}

	return &cfg, nil
}

// addGraphs registers the graphs of cfg in order, so a graph may name any
// earlier graph as a parent. Schema paths are resolved against baseDir.
func addGraphs(fed graphAdder, cfg *bootstrapConfig, baseDir string, user store.User) error {
	for _, g := range cfg.Graphs {
		op := &operation.AddGraph{
			GraphID:            g.ID,
			Properties:         g.Properties,
			ParentSchemaIDs:    g.Parents,
			ParentPropertiesID: g.ParentProperties,
			GraphAuths:         g.Auths,
		}

		if g.Schema != "" {
			path := g.Schema
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("graph %q: read schema: %w", g.ID, err)
			}

			if op.Schema, err = schema.FromJSON(data); err != nil {
				return fmt.Errorf("graph %q: %w", g.ID, err)
			}
		}

		if err := fed.AddGraph(op, user); err != nil {
			return err
		}
	}

	return nil
}
