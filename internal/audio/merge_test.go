package audio

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, path string, f Format, samples []int) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	enc := wav.NewEncoder(out, f.SampleRate, f.BitDepth, f.Channels, wavFormatPCM)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           samples,
		SourceBitDepth: f.BitDepth,
	}))
	require.NoError(t, enc.Close())
}

func readWAV(t *testing.T, path string) (Format, []int) {
	t.Helper()
	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	dec := wav.NewDecoder(in)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return Format{SampleRate: int(dec.SampleRate), BitDepth: int(dec.BitDepth), Channels: int(dec.NumChans)}, buf.Data
}

func newMerger() *Merger {
	return NewMerger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var mono16 = Format{SampleRate: 16000, BitDepth: 16, Channels: 1}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "job.part0000.wav"),
		filepath.Join(dir, "job.part0001.wav"),
		filepath.Join(dir, "job.part0002.wav"),
	}
	writeWAV(t, inputs[0], mono16, []int{1, 2, 3})
	writeWAV(t, inputs[1], mono16, []int{4, 5})
	writeWAV(t, inputs[2], mono16, []int{-6, 7, -8, 9})

	output := filepath.Join(dir, "final", "job.wav")
	require.NoError(t, newMerger().Merge(context.Background(), inputs, output))

	format, samples := readWAV(t, output)
	assert.Equal(t, mono16, format)
	assert.Equal(t, []int{1, 2, 3, 4, 5, -6, 7, -8, 9}, samples)

	for _, in := range inputs {
		_, err := os.Stat(in)
		assert.True(t, os.IsNotExist(err), "input %s removed", in)
	}
}

func TestMerge_FormatMismatchKeepsInputs(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.wav")}
	writeWAV(t, inputs[0], mono16, []int{1, 2})
	writeWAV(t, inputs[1], Format{SampleRate: 22050, BitDepth: 16, Channels: 1}, []int{3, 4})

	output := filepath.Join(dir, "out.wav")
	err := newMerger().Merge(context.Background(), inputs, output)
	assert.ErrorIs(t, err, ErrFormatMismatch)

	for _, in := range inputs {
		assert.FileExists(t, in)
	}
	assert.NoFileExists(t, output)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp file cleaned up")
}

func TestMerge_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.wav")
	bad := filepath.Join(dir, "b.wav")
	writeWAV(t, good, mono16, []int{1})
	require.NoError(t, os.WriteFile(bad, []byte("definitely not audio"), 0o644))

	err := newMerger().Merge(context.Background(), []string{good, bad}, filepath.Join(dir, "out.wav"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid WAV file")
	assert.FileExists(t, good)
}

func TestMerge_MissingInput(t *testing.T) {
	dir := t.TempDir()
	err := newMerger().Merge(context.Background(), []string{filepath.Join(dir, "nope.wav")}, filepath.Join(dir, "out.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMerge_NoInputs(t *testing.T) {
	err := newMerger().Merge(context.Background(), nil, filepath.Join(t.TempDir(), "out.wav"))
	assert.ErrorIs(t, err, ErrNoInputs)
}

func TestMerge_Cancelled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.wav")
	writeWAV(t, in, mono16, []int{1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newMerger().Merge(ctx, []string{in}, filepath.Join(dir, "out.wav"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, in)
}
