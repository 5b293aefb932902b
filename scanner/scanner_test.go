package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(scannerTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type scannerTestSuite struct {
	dir string
}

func (s *scannerTestSuite) SetUpTest(c *check.C) {
	s.dir = c.MkDir()
}

func (s *scannerTestSuite) touch(c *check.C, rel, content string) string {
	path := filepath.Join(s.dir, rel)
	c.Assert(os.MkdirAll(filepath.Dir(path), 0o755), check.IsNil)
	c.Assert(os.WriteFile(path, []byte(content), 0o644), check.IsNil)

	return path
}

func (s *scannerTestSuite) TestOpenFiltersByExtension(c *check.C) {
	a := s.touch(c, "a.txt", "hello")
	s.touch(c, "b.bin", "\x00\x01")

	cur, err := New(Config{BaseDir: s.dir, Extensions: []string{".txt"}}).Open(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(cur.Paths, check.DeepEquals, []string{a})
	c.Assert(cur.NextIndex, check.Equals, 0)
}

func (s *scannerTestSuite) TestOpenIsRecursiveAndSorted(c *check.C) {
	z := s.touch(c, "z.md", "z")
	nested := s.touch(c, "sub/dir/b.TXT", "b")
	a := s.touch(c, "a.html", "a")
	s.touch(c, "sub/skip.pdf", "p")

	cur, err := New(Config{BaseDir: s.dir, Extensions: ParseExtensions(DefaultExtensions)}).Open(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(cur.Paths, check.DeepEquals, []string{a, nested, z})
}

func (s *scannerTestSuite) TestOpenIsStable(c *check.C) {
	for _, name := range []string{"c.txt", "a.txt", "b/a.txt", "b.txt"} {
		s.touch(c, name, name)
	}

	scn := New(Config{BaseDir: s.dir, Extensions: []string{".txt"}})

	first, err := scn.Open(context.TODO())
	c.Assert(err, check.IsNil)
	second, err := scn.Open(context.TODO())
	c.Assert(err, check.IsNil)
	c.Assert(second.Paths, check.DeepEquals, first.Paths)
}

func (s *scannerTestSuite) TestOpenWithoutWork(c *check.C) {
	file := s.touch(c, "a.txt", "a")

	specs := []Config{
		{BaseDir: "", Extensions: []string{".txt"}},
		{BaseDir: s.dir},
		{BaseDir: s.dir, Extensions: []string{"txt"}},
		{BaseDir: filepath.Join(s.dir, "missing"), Extensions: []string{".txt"}},
		{BaseDir: file, Extensions: []string{".txt"}},
	}

	for i, cfg := range specs {
		c.Logf("config %d: %+v", i, cfg)

		cur, err := New(cfg).Open(context.TODO())
		c.Assert(err, check.IsNil)
		c.Assert(cur.Paths, check.HasLen, 0)

		_, ok := cur.Next()
		c.Assert(ok, check.Equals, false)
	}
}

func (s *scannerTestSuite) TestOpenHonorsCancellation(c *check.C) {
	s.touch(c, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{BaseDir: s.dir, Extensions: []string{".txt"}}).Open(ctx)
	c.Assert(errors.Is(err, context.Canceled), check.Equals, true)
}

func (s *scannerTestSuite) TestParseExtensions(c *check.C) {
	c.Assert(ParseExtensions(" .TXT, .Pdf ,docx,, . ,.md"), check.DeepEquals, []string{".txt", ".pdf", ".md"})
	c.Assert(ParseExtensions(""), check.HasLen, 0)
}

func (s *scannerTestSuite) TestCursorNext(c *check.C) {
	cur := &Cursor{Paths: []string{"a", "b"}}

	path, ok := cur.Next()
	c.Assert(ok, check.Equals, true)
	c.Assert(path, check.Equals, "a")
	c.Assert(cur.Remaining(), check.Equals, 1)

	path, ok = cur.Next()
	c.Assert(ok, check.Equals, true)
	c.Assert(path, check.Equals, "b")

	_, ok = cur.Next()
	c.Assert(ok, check.Equals, false)
	c.Assert(cur.NextIndex, check.Equals, 2)
	c.Assert(cur.Remaining(), check.Equals, 0)
}

func (s *scannerTestSuite) TestCheckpointAndRestore(c *check.C) {
	store := make(mapCheckpoints)
	cur := &Cursor{Paths: []string{"a", "b", "c"}}

	found, err := Restore(context.TODO(), store, "run", cur)
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, false)
	c.Assert(cur.NextIndex, check.Equals, 0)

	c.Assert(Checkpoint(context.TODO(), store, "run", 2), check.IsNil)

	restored := &Cursor{Paths: cur.Paths}
	found, err = Restore(context.TODO(), store, "run", restored)
	c.Assert(err, check.IsNil)
	c.Assert(found, check.Equals, true)

	path, ok := restored.Next()
	c.Assert(ok, check.Equals, true)
	c.Assert(path, check.Equals, "c")
}

func (s *scannerTestSuite) TestRestoreClampsIndex(c *check.C) {
	store := mapCheckpoints{"high": 10, "low": -4}

	cur := &Cursor{Paths: []string{"a", "b"}}
	_, err := Restore(context.TODO(), store, "high", cur)
	c.Assert(err, check.IsNil)
	c.Assert(cur.NextIndex, check.Equals, 2)

	_, err = Restore(context.TODO(), store, "low", cur)
	c.Assert(err, check.IsNil)
	c.Assert(cur.NextIndex, check.Equals, 0)
}

type mapCheckpoints map[string]int

func (m mapCheckpoints) SaveCheckpoint(_ context.Context, key string, nextIndex int) error {
	m[key] = nextIndex

	return nil
}

func (m mapCheckpoints) LoadCheckpoint(_ context.Context, key string) (int, bool, error) {
	pos, ok := m[key]

	return pos, ok, nil
}

func (m mapCheckpoints) DeleteCheckpoint(_ context.Context, key string) error {
	delete(m, key)

	return nil
}
