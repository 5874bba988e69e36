package blevekv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/store/kv/kvstore"
)

var _ = check.Suite(new(InMemoryTestSuite))
var _ = check.Suite(new(BoltTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites.
	check.TestingT(t)
}

var errBadValue = errors.New("bad value")

// sumMerge adds two big-endian uint64 values.
func sumMerge(_, existing, incoming []byte) ([]byte, error) {
	if len(existing) != 8 || len(incoming) != 8 {
		return nil, errBadValue
	}

	return u64(binary.BigEndian.Uint64(existing) + binary.BigEndian.Uint64(incoming)), nil
}

func u64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func rec(key string, v uint64) codec.Record {
	return codec.Record{Key: []byte(key), Value: u64(v)}
}

// baseSuite holds the tests shared by every bleve backed store.
type baseSuite struct {
	store *Store
}

func (s *baseSuite) TestWriteMergesValues(c *check.C) {
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 1), rec("b", 2), rec("a", 3)}), check.IsNil)
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 10)}), check.IsNil)

	cur, err := s.store.Scan(context.TODO(), nil, nil)
	c.Assert(err, check.IsNil)

	records, err := kvstore.Collect(cur)
	c.Assert(err, check.IsNil)
	c.Assert(records, check.DeepEquals, []codec.Record{rec("a", 14), rec("b", 2)})
}

func (s *baseSuite) TestScanRange(c *check.C) {
	var records []codec.Record
	for i := 9; i >= 0; i-- {
		records = append(records, rec(fmt.Sprintf("k%02d", i), uint64(i)))
	}

	c.Assert(s.store.Write(context.TODO(), records), check.IsNil)

	cur, err := s.store.Scan(context.TODO(), []byte("k03"), []byte("k06"))
	c.Assert(err, check.IsNil)

	got, err := kvstore.Collect(cur)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, []codec.Record{rec("k03", 3), rec("k04", 4), rec("k05", 5)})

	cur, err = s.store.Scan(context.TODO(), []byte("k08"), nil)
	c.Assert(err, check.IsNil)

	got, err = kvstore.Collect(cur)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.HasLen, 2)
}

func (s *baseSuite) TestCursorCloseIsIdempotent(c *check.C) {
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 1)}), check.IsNil)

	cur, err := s.store.Scan(context.TODO(), nil, nil)
	c.Assert(err, check.IsNil)
	c.Assert(cur.Close(), check.IsNil)
	c.Assert(cur.Close(), check.IsNil)
	c.Assert(cur.Next(), check.Equals, false)
}

func (s *baseSuite) TestCancelledScan(c *check.C) {
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 1)}), check.IsNil)

	ctx, cancel := context.WithCancel(context.TODO())
	cancel()

	cur, err := s.store.Scan(ctx, nil, nil)
	c.Assert(err, check.IsNil)
	defer func() { _ = cur.Close() }()

	c.Assert(cur.Next(), check.Equals, false)
	c.Assert(errors.Is(cur.Error(), context.Canceled), check.Equals, true)
}

func (s *baseSuite) TestMergeFailureIsReported(c *check.C) {
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 1)}), check.IsNil)

	err := s.store.Write(context.TODO(), []codec.Record{{Key: []byte("a"), Value: []byte("x")}})
	c.Assert(errors.Is(err, kvstore.ErrMergeFailed), check.Equals, true)

	// The stored value is kept and later writes succeed.
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 1)}), check.IsNil)

	cur, err := s.store.Scan(context.TODO(), nil, nil)
	c.Assert(err, check.IsNil)

	got, err := kvstore.Collect(cur)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, []codec.Record{rec("a", 2)})
}

type InMemoryTestSuite struct {
	baseSuite
}

func (s *InMemoryTestSuite) SetUpTest(c *check.C) {
	st, err := kvstore.Open("in-memory://", sumMerge)
	c.Assert(err, check.IsNil)

	s.store = st.(*Store)
}

func (s *InMemoryTestSuite) TearDownTest(c *check.C) {
	c.Assert(s.store.Close(), check.IsNil)
}

func (s *InMemoryTestSuite) TestOpen(c *check.C) {
	c.Assert(kvstore.Schemes(), check.DeepEquals, []string{SchemeBolt, SchemeMemory})

	_, err := kvstore.Open("nope://", sumMerge)
	c.Assert(errors.Is(err, kvstore.ErrUnknownScheme), check.Equals, true)

	_, err = kvstore.Open("in-memory://", nil)
	c.Assert(err, check.ErrorMatches, ".*merge function not provided.*")
}

func (s *InMemoryTestSuite) TestNewInMemoryNeedsNoPath(c *check.C) {
	st, err := NewInMemory(sumMerge)
	c.Assert(err, check.IsNil)
	c.Assert(st.Write(context.TODO(), []codec.Record{rec("a", 1)}), check.IsNil)
	c.Assert(st.Close(), check.IsNil)
}

type BoltTestSuite struct {
	baseSuite
	path string
}

func (s *BoltTestSuite) SetUpTest(c *check.C) {
	s.path = filepath.Join(c.MkDir(), "graph.db")

	st, err := kvstore.Open("bolt://"+s.path, sumMerge)
	c.Assert(err, check.IsNil)

	s.store = st.(*Store)
}

func (s *BoltTestSuite) TearDownTest(c *check.C) {
	c.Assert(s.store.Close(), check.IsNil)
}

func (s *BoltTestSuite) TestDataSurvivesReopen(c *check.C) {
	c.Assert(s.store.Write(context.TODO(), []codec.Record{rec("a", 5)}), check.IsNil)
	c.Assert(s.store.Close(), check.IsNil)

	st, err := NewBolt(s.path, sumMerge)
	c.Assert(err, check.IsNil)
	s.store = st

	cur, err := s.store.Scan(context.TODO(), nil, nil)
	c.Assert(err, check.IsNil)

	got, err := kvstore.Collect(cur)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, []codec.Record{rec("a", 5)})
}
