package main

import (
	"os"
	"path/filepath"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/federated"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/kv"
	"github.com/mycok/uGraph/store/storetest"
)

var _ = check.Suite(new(BootstrapTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

const bootstrapYAML = `
graphs:
  - id: people
    schema: schemas/people.json
    properties:
      ugraph.store.type: kv
      ugraph.kv.uri: in-memory://
    auths: [team]
  - id: people-archive
    parents: [people]
    parentProperties: people
`

type BootstrapTestSuite struct {
	dir string
	fed *federated.Store
}

func (s *BootstrapTestSuite) SetUpTest(c *check.C) {
	s.dir = c.MkDir()

	data, err := storetest.Schema().ToJSON()
	c.Assert(err, check.IsNil)
	c.Assert(os.MkdirAll(filepath.Join(s.dir, "schemas"), 0o755), check.IsNil)
	c.Assert(os.WriteFile(filepath.Join(s.dir, "schemas", "people.json"), data, 0o600), check.IsNil)

	factories := store.NewFactoryRegistry()
	factories.Register(kv.StoreType, kv.NewFactory(nil, nil))

	s.fed, err = federated.New(federated.Config{GraphID: "federated", Factories: factories})
	c.Assert(err, check.IsNil)
}

func (s *BootstrapTestSuite) TearDownTest(c *check.C) {
	c.Assert(s.fed.Close(), check.IsNil)
}

func (s *BootstrapTestSuite) writeBootstrap(c *check.C, content string) string {
	path := filepath.Join(s.dir, "graphs.yaml")
	c.Assert(os.WriteFile(path, []byte(content), 0o600), check.IsNil)

	return path
}

func (s *BootstrapTestSuite) TestAddGraphsFromFile(c *check.C) {
	path := s.writeBootstrap(c, bootstrapYAML)

	cfg, err := loadBootstrap(path)
	c.Assert(err, check.IsNil)
	c.Assert(cfg.Graphs, check.HasLen, 2)

	c.Assert(addGraphs(s.fed, cfg, filepath.Dir(path), store.User{ID: appName}), check.IsNil)

	member := store.User{ID: "member", Auths: []string{"team"}}
	c.Assert(s.fed.GraphIDs(member), check.DeepEquals, []string{"people", "people-archive"})
	c.Assert(s.fed.GraphIDs(store.User{ID: "guest"}), check.DeepEquals, []string{"people-archive"})

	reg, ok := s.fed.Registration("people-archive")
	c.Assert(ok, check.Equals, true)
	c.Assert(reg.Schema.HasGroup("Knows"), check.Equals, true)
	c.Assert(reg.Properties[store.PropStoreType], check.Equals, kv.StoreType)
	c.Assert(reg.CreatedBy, check.Equals, appName)
}

func (s *BootstrapTestSuite) TestUnknownFieldsAreRejected(c *check.C) {
	path := s.writeBootstrap(c, "graphs:\n  - id: people\n    shema: people.json\n")

	_, err := loadBootstrap(path)
	c.Assert(err, check.ErrorMatches, "(?s)parse bootstrap file .*")
}

func (s *BootstrapTestSuite) TestMissingSchemaFile(c *check.C) {
	path := s.writeBootstrap(c, "graphs:\n  - id: people\n    schema: missing.json\n")

	cfg, err := loadBootstrap(path)
	c.Assert(err, check.IsNil)

	err = addGraphs(s.fed, cfg, filepath.Dir(path), store.User{ID: appName})
	c.Assert(err, check.ErrorMatches, `graph "people": read schema: .*`)
	c.Assert(s.fed.GraphIDs(store.User{ID: "guest"}), check.HasLen, 0)
}
