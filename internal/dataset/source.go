package dataset

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slopezpereyra/icf-visualization-app/internal/config"
)

// Source opens the named tables. Implementations must be safe to call
// sequentially; Load never opens two objects at once.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe() string
}

// Files names the object holding each of the four tables.
type Files struct {
	Trials       string
	SubjectLevel string
	GroupLevel   string
	Participants string
}

// DefaultFiles returns the file names written by the analysis pipeline.
func DefaultFiles() Files {
	return Files{
		Trials:       "formatted_data.csv",
		SubjectLevel: "analysis_subject_level.csv",
		GroupLevel:   "analysis_group_level.csv",
		Participants: "ParticipantsInfo.csv",
	}
}

// FilesFromConfig maps the files section of the configuration.
func FilesFromConfig(cfg config.FilesConfig) Files {
	return Files{
		Trials:       cfg.Trials,
		SubjectLevel: cfg.SubjectLevel,
		GroupLevel:   cfg.GroupLevel,
		Participants: cfg.Participants,
	}
}

// NewSource builds the source selected by the data configuration.
func NewSource(ctx context.Context, cfg config.DataConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceDir, "":
		return NewDirSource(cfg.Dir), nil
	case config.SourceS3:
		return NewS3Source(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	}
	return nil, fmt.Errorf("unsupported data source %q", cfg.Source)
}

// DirSource reads tables from files under a root directory.
type DirSource struct {
	Root string
}

// NewDirSource creates a directory source.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

// Open opens root/name. Names must be relative and stay inside the root.
func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Root, clean)) // #nosec G304: name validated by cleanName
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// Describe returns the directory the source reads from.
func (s *DirSource) Describe() string {
	return "dir:" + s.Root
}

func cleanName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty table name")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute paths not allowed: %s", name)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal not allowed: %s", name)
	}
	return clean, nil
}

// MemorySource serves tables from memory.
type MemorySource struct {
	files map[string]string
}

// NewMemorySource creates a source from name -> CSV content.
func NewMemorySource(files map[string]string) *MemorySource {
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	return &MemorySource{files: copied}
}

// Open returns the content stored under name.
func (s *MemorySource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	content, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("failed to open %s: %w", name, fs.ErrNotExist)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// Describe lists the object names held in memory.
func (s *MemorySource) Describe() string {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return "memory:" + strings.Join(names, ",")
}
