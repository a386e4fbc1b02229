package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vburojevic/ttycast/internal/asciicast"
)

// castFile buffers a transcript into a temporary file beside its final path
// and renames it into place on Commit, so readers never see partial output.
type castFile struct {
	path           string
	outputFile     *os.File
	bufferedWriter *bufio.Writer
}

func createCastFile(path string) (*castFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &castFile{path: path, outputFile: f, bufferedWriter: bufio.NewWriter(f)}, nil
}

func (c *castFile) Write(p []byte) (int, error) {
	return c.bufferedWriter.Write(p)
}

// Commit flushes and moves the file to its final path.
func (c *castFile) Commit() error {
	if err := c.bufferedWriter.Flush(); err != nil {
		c.Abort()
		return err
	}
	if err := c.outputFile.Close(); err != nil {
		os.Remove(c.outputFile.Name())
		return err
	}
	if err := os.Rename(c.outputFile.Name(), c.path); err != nil {
		os.Remove(c.outputFile.Name())
		return err
	}
	return nil
}

// Abort discards everything written so far.
func (c *castFile) Abort() {
	c.outputFile.Close()
	os.Remove(c.outputFile.Name())
}

// writeCastFile encodes t to path atomically.
func writeCastFile(path string, t *asciicast.Transcript, format asciicast.Format) error {
	f, err := createCastFile(path)
	if err != nil {
		return err
	}
	if err := asciicast.Encode(f, t, format); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

// sessionFileName limits session ids used as file names. Ids come from
// sensor events, so anything that could leave the output directory is refused.
var sessionFileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// transcriptName returns <session><ext>, or an error for a session id that is
// not a plain file name.
func transcriptName(session string, format asciicast.Format) (string, error) {
	if !sessionFileName.MatchString(session) || strings.Contains(session, "..") {
		return "", fmt.Errorf("session id %q cannot be used as a file name", session)
	}
	return session + format.Extension(), nil
}

// resolveOutputPath maps -o to a file. An existing directory or a trailing
// separator receives <session><ext>.
func resolveOutputPath(output, session string, format asciicast.Format) (string, error) {
	intoDir := strings.HasSuffix(output, string(os.PathSeparator)) || strings.HasSuffix(output, "/")
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		intoDir = true
	}
	if !intoDir {
		return output, nil
	}
	name, err := transcriptName(session, format)
	if err != nil {
		return "", err
	}
	return filepath.Join(output, name), nil
}

// samePath reports whether a and b name the same file or directory.
func samePath(a, b string) bool {
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ai, bi)
	}
	return absPath(a) == absPath(b)
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// isTranscriptFile reports whether path holds a JSON transcript document.
func isTranscriptFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = asciicast.Read(f)
	return err == nil
}
