package migrations

import (
	"io"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versions(t *testing.T, dialect string) []uint {
	t.Helper()
	source, err := iofs.New(files, dialect)
	require.NoError(t, err)
	defer source.Close()

	var out []uint
	version, err := source.First()
	for err == nil {
		out = append(out, version)

		for _, read := range []func(uint) (io.ReadCloser, string, error){source.ReadUp, source.ReadDown} {
			body, _, err := read(version)
			require.NoError(t, err, "%s migration %d", dialect, version)
			content, err := io.ReadAll(body)
			body.Close()
			require.NoError(t, err)
			assert.NotEmpty(t, content)
		}

		version, err = source.Next(version)
	}
	require.ErrorIs(t, err, os.ErrNotExist)
	return out
}

func TestDialectsDeclareTheSameVersions(t *testing.T) {
	mysqlVersions := versions(t, "mysql")
	assert.Equal(t, []uint{1, 2, 3, 4}, mysqlVersions)
	assert.Equal(t, mysqlVersions, versions(t, "postgres"))
}

func TestUnsupportedDriver(t *testing.T) {
	assert.Error(t, Up(nil, "sqlite3"))
}
