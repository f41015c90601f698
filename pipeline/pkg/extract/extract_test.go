package extract_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/electionlake/pipeline/pkg/extract"
)

const header = `"CD_ELEICAO";"CD_MUNICIPIO";"NM_MUNICIPIO";"CD_CARGO_PERGUNTA";"NR_VOTAVEL";"QT_VOTOS"` + "\n"

func line(fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, ";") + "\n"
}

func TestElectionLake_Extract_Extractor(t *testing.T) {
	t.Parallel()

	t.Run("chunks rows in order", func(t *testing.T) {
		t.Parallel()
		body := header +
			line("426", "01066", "ACRELANDIA", "11", "13", "5") +
			line("426", "01066", "ACRELANDIA", "11", "22", "7") +
			line("426", "01120", "BRASILEIA", "11", "13", "3")
		ex, err := extract.New(strings.NewReader(body), extract.Config{ChunkSize: 2, Encoding: extract.EncodingUTF8})
		require.NoError(t, err)

		c0, err := ex.Next()
		require.NoError(t, err)
		require.Equal(t, 0, c0.Index)
		require.Len(t, c0.Rows, 2)
		require.Equal(t, 2, c0.Rows[0].Line)
		require.Equal(t, "13", c0.Rows[0].Fields["NR_VOTAVEL"])
		require.Equal(t, "7", c0.Rows[1].Fields["QT_VOTOS"])

		c1, err := ex.Next()
		require.NoError(t, err)
		require.Equal(t, 1, c1.Index)
		require.Len(t, c1.Rows, 1)
		require.Equal(t, 4, c1.Rows[0].Line)
		require.Equal(t, "BRASILEIA", c1.Rows[0].Fields["NM_MUNICIPIO"])

		_, err = ex.Next()
		require.ErrorIs(t, err, io.EOF)
		_, err = ex.Next()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("decodes latin1 by default", func(t *testing.T) {
		t.Parallel()
		body := header + line("426", "71072", "S\xc3O PAULO", "11", "13", "1")
		ex, err := extract.New(strings.NewReader(body), extract.Config{})
		require.NoError(t, err)
		c, err := ex.Next()
		require.NoError(t, err)
		require.Equal(t, "SÃO PAULO", c.Rows[0].Fields["NM_MUNICIPIO"])
	})

	t.Run("strips a utf8 byte order mark", func(t *testing.T) {
		t.Parallel()
		body := "\ufeff" + header + line("426", "01066", "ACRELANDIA", "11", "13", "5")
		ex, err := extract.New(strings.NewReader(body), extract.Config{Encoding: "UTF-8"})
		require.NoError(t, err)
		require.Equal(t, "CD_ELEICAO", ex.Header()[0])
	})

	t.Run("byte order mark overrides latin1 decoding", func(t *testing.T) {
		t.Parallel()
		body := "\ufeff" + header + line("426", "01066", "SÃO PAULO", "11", "13", "5")
		ex, err := extract.New(strings.NewReader(body), extract.Config{})
		require.NoError(t, err)
		require.Equal(t, "CD_ELEICAO", ex.Header()[0])
		c, err := ex.Next()
		require.NoError(t, err)
		require.Len(t, c.Rows, 1)
		require.Equal(t, "SÃO PAULO", c.Rows[0].Fields["NM_MUNICIPIO"])
	})

	t.Run("field count mismatch is a row error", func(t *testing.T) {
		t.Parallel()
		body := header +
			line("426", "01066", "ACRELANDIA", "11") +
			line("426", "01066", "ACRELANDIA", "11", "13", "5")
		ex, err := extract.New(strings.NewReader(body), extract.Config{Encoding: extract.EncodingUTF8})
		require.NoError(t, err)
		c, err := ex.Next()
		require.NoError(t, err)
		require.Len(t, c.Rows, 2)
		require.Error(t, c.Rows[0].Err)
		require.Nil(t, c.Rows[0].Fields)
		require.NoError(t, c.Rows[1].Err)
	})

	t.Run("custom separator", func(t *testing.T) {
		t.Parallel()
		body := "CD_ELEICAO,CD_MUNICIPIO,CD_CARGO_PERGUNTA,NR_VOTAVEL,QT_VOTOS\n426,01066,11,13,5\n"
		ex, err := extract.New(strings.NewReader(body), extract.Config{Separator: ',', Encoding: extract.EncodingUTF8})
		require.NoError(t, err)
		c, err := ex.Next()
		require.NoError(t, err)
		require.Equal(t, "5", c.Rows[0].Fields["QT_VOTOS"])
	})

	t.Run("header only", func(t *testing.T) {
		t.Parallel()
		ex, err := extract.New(strings.NewReader(header), extract.Config{})
		require.NoError(t, err)
		_, err = ex.Next()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("empty extract", func(t *testing.T) {
		t.Parallel()
		_, err := extract.New(strings.NewReader(""), extract.Config{})
		var eerr *extract.ExtractionError
		require.ErrorAs(t, err, &eerr)
		require.ErrorIs(t, err, extract.ErrEmptyExtract)
	})

	t.Run("missing required columns", func(t *testing.T) {
		t.Parallel()
		_, err := extract.New(strings.NewReader("CD_ELEICAO;QT_VOTOS\n426;1\n"), extract.Config{})
		require.ErrorIs(t, err, extract.ErrMissingColumns)
		require.Contains(t, err.Error(), "CD_MUNICIPIO")
	})

	t.Run("read failure is an extraction error", func(t *testing.T) {
		t.Parallel()
		r := io.MultiReader(strings.NewReader(header+line("426", "01066", "A", "11", "13", "5")), failingReader{})
		ex, err := extract.New(r, extract.Config{Encoding: extract.EncodingUTF8})
		require.NoError(t, err)
		_, err = ex.Next()
		var eerr *extract.ExtractionError
		require.ErrorAs(t, err, &eerr)
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestElectionLake_Extract_Config(t *testing.T) {
	t.Parallel()

	cfg := extract.Config{}
	require.NoError(t, cfg.Validate())
	require.Equal(t, extract.DefaultChunkSize, cfg.ChunkSize)
	require.Equal(t, ';', cfg.Separator)
	require.Equal(t, extract.EncodingLatin1, cfg.Encoding)

	require.Error(t, (&extract.Config{ChunkSize: -1}).Validate())
	require.Error(t, (&extract.Config{Separator: '"'}).Validate())
	require.Error(t, (&extract.Config{Encoding: "cp1252"}).Validate())

	enc, err := extract.NormalizeEncoding("ISO-8859-1")
	require.NoError(t, err)
	require.Equal(t, extract.EncodingLatin1, enc)
}
