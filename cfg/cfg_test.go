package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStorage struct {
	Type  string `cfg:"type" def:"memory" validate:"oneof=memory boltdb leveldb pebble"`
	Path  string `cfg:"path"`
	Codec string `cfg:"codec" def:"msgpack"`
}

type testOptions struct {
	Name          string         `cfg:"name" def:"odb"`
	Storage       testStorage    `cfg:"storage"`
	CloseTimeout  time.Duration  `cfg:"closeTimeout" def:"5s"`
	QueueSize     int            `cfg:"queueSize" def:"1024" validate:"min=1"`
	EnableMetrics bool           `cfg:"enableMetrics" def:"true"`
	Tags          []string       `cfg:"tags"`
	Fields        map[string]any `cfg:"fields"`
	Logger        *struct {
		Level string `cfg:"level" def:"info"`
	} `cfg:"logger"`
}

func TestDecode(t *testing.T) {
	cases := []struct {
		format string
		data   string
	}{
		{FormatYAML, `
name: demo
storage:
  type: boltdb
  path: /tmp/odb.db
closeTimeout: 2s
queueSize: 16
enableMetrics: false
tags: [a, b]
fields:
  env: test
logger:
  level: debug
`},
		{FormatJSON, `{
  "name": "demo",
  "storage": {"type": "boltdb", "path": "/tmp/odb.db"},
  "closeTimeout": "2s",
  "queueSize": 16,
  "enableMetrics": false,
  "tags": ["a", "b"],
  "fields": {"env": "test"},
  "logger": {"level": "debug"}
}`},
		{FormatTOML, `
name = "demo"
closeTimeout = "2s"
queueSize = 16
enableMetrics = false
tags = ["a", "b"]

[storage]
type = "boltdb"
path = "/tmp/odb.db"

[fields]
env = "test"

[logger]
level = "debug"
`},
		{FormatINI, `
name = demo
closeTimeout = 2s
queueSize = 16
enableMetrics = false

[storage]
type = boltdb
path = /tmp/odb.db

[fields]
env = test

[logger]
level = debug
`},
	}

	for _, c := range cases {
		t.Run(c.format, func(t *testing.T) {
			var options testOptions
			require.NoError(t, Decode([]byte(c.data), c.format, &options))

			assert.Equal(t, "demo", options.Name)
			assert.Equal(t, "boltdb", options.Storage.Type)
			assert.Equal(t, "/tmp/odb.db", options.Storage.Path)
			assert.Equal(t, "msgpack", options.Storage.Codec)
			assert.Equal(t, 2*time.Second, options.CloseTimeout)
			assert.Equal(t, 16, options.QueueSize)
			assert.False(t, options.EnableMetrics)
			assert.Equal(t, "test", options.Fields["env"])
			require.NotNil(t, options.Logger)
			assert.Equal(t, "debug", options.Logger.Level)
			if c.format != FormatINI {
				assert.Equal(t, []string{"a", "b"}, options.Tags)
			}
		})
	}
}

func TestDecodeDefaults(t *testing.T) {
	var options testOptions
	require.NoError(t, Decode([]byte("{}"), FormatJSON, &options))
	assert.Equal(t, "odb", options.Name)
	assert.Equal(t, "memory", options.Storage.Type)
	assert.Equal(t, 5*time.Second, options.CloseTimeout)
	assert.Equal(t, 1024, options.QueueSize)
	assert.True(t, options.EnableMetrics)
	assert.Nil(t, options.Logger)
}

func TestDecodeErrors(t *testing.T) {
	var options testOptions
	assert.Error(t, Decode([]byte("storage:\n  type: redis\n"), FormatYAML, &options))
	assert.Error(t, Decode([]byte("queueSize: 0\n"), FormatYAML, &testOptions{}))
	assert.Error(t, Decode([]byte("closeTimeout: soon\n"), FormatYAML, &testOptions{}))
	assert.Error(t, Decode([]byte("{"), FormatJSON, &testOptions{}))
	assert.Error(t, Decode([]byte("a: 1"), "xml", &testOptions{}))
	assert.Error(t, SetDefaults(testOptions{}))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nstorage:\n  type: pebble\n"), 0644))

	var options testOptions
	require.NoError(t, Load(path, &options))
	assert.Equal(t, "file", options.Name)
	assert.Equal(t, "pebble", options.Storage.Type)

	assert.Error(t, Load(filepath.Join(dir, "missing.yaml"), &options))
	_, err := FormatOf("odb.xml")
	assert.Error(t, err)
}
