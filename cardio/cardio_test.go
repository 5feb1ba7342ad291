package cardio

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/janelia-flyem/go/gocheck"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type BaseSuite struct{}

var _ = Suite(&BaseSuite{})

func (s *BaseSuite) TestPoint3d(c *C) {
	a := Point3d{10, 21, 30}
	b := Point3d{-2, 4, 1}
	c.Assert(a.Add(b), Equals, Point3d{8, 25, 31})
	c.Assert(a.Sub(b), Equals, Point3d{12, 17, 29})
	c.Assert(a.String(), Equals, "(10,21,30)")
	c.Assert(Point3d{2, 3, 4}.Prod(), Equals, int64(24))

	d := Point3d{1, 1, 1}
	e := Point3d{4, 5, 1}
	c.Assert(d.Distance(e), Equals, 5.0)
	c.Assert(d.DistanceSq(1.5, 1, 1), Equals, 0.25)

	size := Point3d{4, 4, 4}
	c.Assert(Point3d{0, 3, 2}.InBounds(size), Equals, true)
	c.Assert(Point3d{0, 4, 2}.InBounds(size), Equals, false)
	c.Assert(Point3d{-1, 0, 0}.InBounds(size), Equals, false)
}

func (s *BaseSuite) TestStringToPoint3d(c *C) {
	p, err := StringToPoint3d("3, 8,-2", ",")
	c.Assert(err, IsNil)
	c.Assert(p, Equals, Point3d{3, 8, -2})

	_, err = StringToPoint3d("3_8", "_")
	c.Assert(err, NotNil)
	_, err = StringToPoint3d("3_x_1", "_")
	c.Assert(err, NotNil)
}

func (s *BaseSuite) TestSerialization(c *C) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 7)
	}
	for _, compress := range []Compression{Uncompressed, Snappy, Zstd} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compress, checksum)
			c.Assert(err, IsNil)
			obtained, gotCompress, err := DeserializeData(s, true)
			c.Assert(err, IsNil)
			c.Assert(gotCompress, Equals, compress)
			c.Assert(obtained, DeepEquals, data, Commentf("%s / %s", compress, checksum))
		}
	}
}

func (s *BaseSuite) TestChecksumMismatch(c *C) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	s1, err := SerializeData(data, Uncompressed, CRC32)
	c.Assert(err, IsNil)
	s1[len(s1)-1] ^= 0xff
	_, _, err = DeserializeData(s1, true)
	c.Assert(err, NotNil)

	_, _, err = DeserializeData(nil, true)
	c.Assert(err, NotNil)
}

func (s *BaseSuite) TestParseCompression(c *C) {
	for str, expected := range map[string]Compression{"": Snappy, "ZSTD": Zstd, "none": Uncompressed} {
		got, err := ParseCompression(str)
		c.Assert(err, IsNil)
		c.Assert(got, Equals, expected)
	}
	_, err := ParseCompression("lz4")
	c.Assert(err, NotNil)
}

func (s *BaseSuite) TestErrorKinds(c *C) {
	err := fmt.Errorf("loading heart: %w", NewMalformedDatasetError("nx", "must be positive, got %d", 0))
	var malformed *MalformedDatasetError
	c.Assert(errors.As(err, &malformed), Equals, true)
	c.Assert(malformed.Field, Equals, "nx")

	var uninit *UninitializedEngineError
	c.Assert(errors.As(&UninitializedEngineError{Op: "step"}, &uninit), Equals, true)
	c.Assert(uninit.Error(), Equals, "cannot step: simulation engine has no domain loaded")

	var degenerate *DegenerateDomainError
	c.Assert(errors.As(err, &degenerate), Equals, false)
}

func (s *BaseSuite) TestConfig(c *C) {
	conf := Config{"path": "/tmp/x", "testing": true, "size": int64(12), "bad": 3.5}
	path, found, err := conf.GetString("path")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(path, Equals, "/tmp/x")

	b, found, err := conf.GetBool("testing")
	c.Assert(err, IsNil)
	c.Assert(found && b, Equals, true)

	i, found, err := conf.GetInt("size")
	c.Assert(err, IsNil)
	c.Assert(found, Equals, true)
	c.Assert(i, Equals, 12)

	_, found, err = conf.GetString("bad")
	c.Assert(found, Equals, true)
	c.Assert(err, NotNil)

	_, found, err = conf.GetBool("missing")
	c.Assert(found, Equals, false)
	c.Assert(err, IsNil)
}

func (s *BaseSuite) TestConvertToAbsolute(c *C) {
	p, err := ConvertToAbsolute("/var/log/x.log", "/etc")
	c.Assert(err, IsNil)
	c.Assert(p, Equals, "/var/log/x.log")
	p, err = ConvertToAbsolute("logs/x.log", "/etc/cardiowave")
	c.Assert(err, IsNil)
	c.Assert(p, Equals, "/etc/cardiowave/logs/x.log")
}

func (s *BaseSuite) TestLogMode(c *C) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	defer SetLogMode(InfoMode)

	SetLogMode(InfoMode)
	Debugf("hidden %d\n", 1)
	Infof("shown %d\n", 2)
	c.Assert(strings.Contains(buf.String(), "hidden"), Equals, false)
	c.Assert(strings.Contains(buf.String(), "    INFO shown 2"), Equals, true)

	buf.Reset()
	SetLogMode(ErrorMode)
	Warningf("quiet\n")
	Errorf("loud\n")
	c.Assert(strings.Contains(buf.String(), "quiet"), Equals, false)
	c.Assert(strings.Contains(buf.String(), "   ERROR loud"), Equals, true)

	buf.Reset()
	SetLogMode(DebugMode)
	NewTimeLog().Debugf("timed %s", "op")
	c.Assert(strings.Contains(buf.String(), "   DEBUG timed op: "), Equals, true)
}

func (s *BaseSuite) TestLogFile(c *C) {
	defer log.SetOutput(os.Stderr)
	filename := filepath.Join(c.MkDir(), "cardiowave.log")
	config := &LogConfig{Logfile: filename, MaxSize: 1, MaxAge: 1}
	config.SetLogger()
	Warningf("written to file\n")
	Shutdown()
	Shutdown()

	data, err := os.ReadFile(filename)
	c.Assert(err, IsNil)
	c.Assert(strings.Contains(string(data), " WARNING written to file"), Equals, true)
	c.Assert(strings.Contains(string(data), "Closing log file"), Equals, true)

	var nilConfig *LogConfig
	nilConfig.SetLogger()
}

