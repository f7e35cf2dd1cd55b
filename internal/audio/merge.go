// Package audio joins per-chunk WAV artifacts into the final recording.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

var (
	// ErrNoInputs is returned when Merge is called without artifacts
	ErrNoInputs = errors.New("no audio inputs to merge")

	// ErrFormatMismatch is returned when the inputs do not share one sample format
	ErrFormatMismatch = errors.New("audio format mismatch")
)

// Format is the sample layout of a PCM WAV file
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz/%d bit/%d ch", f.SampleRate, f.BitDepth, f.Channels)
}

// Merger concatenates WAV files
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge writes the samples of inputs, in order, into a single WAV at output and then
// deletes the inputs. On any error the inputs are left untouched and no output exists.
func (m *Merger) Merge(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create merge file: %w", err)
	}
	tmpName := tmp.Name()

	if err := m.concat(ctx, inputs, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush merged audio: %w", err)
	}
	if err := os.Rename(tmpName, output); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move merged audio into place: %w", err)
	}

	for _, in := range inputs {
		if err := os.Remove(in); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("Failed to remove chunk artifact",
				slog.String("path", in),
				slog.String("error", err.Error()),
			)
		}
	}

	m.logger.Debug("Merged audio",
		slog.String("output", output),
		slog.Int("inputs", len(inputs)),
	)
	return nil
}

func (m *Merger) concat(ctx context.Context, inputs []string, out *os.File) error {
	var (
		enc    *wav.Encoder
		format Format
	)

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", in, err)
		}

		dec := wav.NewDecoder(f)
		if !dec.IsValidFile() {
			f.Close()
			return fmt.Errorf("%s is not a valid WAV file", in)
		}
		if dec.WavAudioFormat != wavFormatPCM {
			f.Close()
			return fmt.Errorf("%s: unsupported WAV encoding %d", in, dec.WavAudioFormat)
		}

		current := Format{
			SampleRate: int(dec.SampleRate),
			BitDepth:   int(dec.BitDepth),
			Channels:   int(dec.NumChans),
		}
		if i == 0 {
			format = current
			enc = wav.NewEncoder(out, format.SampleRate, format.BitDepth, format.Channels, wavFormatPCM)
		} else if current != format {
			f.Close()
			return fmt.Errorf("%w: %s is %s, expected %s", ErrFormatMismatch, in, current, format)
		}

		buf, err := dec.FullPCMBuffer()
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", in, err)
		}

		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write samples from %s: %w", in, err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize merged audio: %w", err)
	}
	return nil
}
